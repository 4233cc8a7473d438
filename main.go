package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/bwmarrin/discordgo"
	"github.com/fatih/color"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html"
	"github.com/joho/godotenv"

	"github.com/aoisuzu/Gatekeeper/app/auditlog"
	"github.com/aoisuzu/Gatekeeper/app/config"
	"github.com/aoisuzu/Gatekeeper/app/controllers"
	"github.com/aoisuzu/Gatekeeper/app/database"
	"github.com/aoisuzu/Gatekeeper/app/grant"
	"github.com/aoisuzu/Gatekeeper/app/identity"
	"github.com/aoisuzu/Gatekeeper/app/policy"
	"github.com/aoisuzu/Gatekeeper/app/reputation"
)

func main() {
	color.Cyan("[i] Setting up..")

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.Any("err", err))
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to db", slog.Any("err", err))
		os.Exit(1)
	}
	defer store.Close()

	discord, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Error("failed to create bot", slog.Any("err", err))
		os.Exit(1)
	}
	discord.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	controllers.NewBot(discord, store, cfg.CommandPrefix, cfg.BaseURL, logger)

	if err := discord.Open(); err != nil {
		logger.Error("couldn't open websocket to Discord", slog.Any("err", err))
		os.Exit(1)
	}
	defer discord.Close()
	color.Green("[i | Login] Connected as bot")

	engine := policy.NewEngine(reputation.NewIPInfoClient(cfg.IPInfoToken, logger))
	executor := grant.NewExecutor(
		grant.NewDiscordDirectory(discord),
		grant.NewDiscordNotifier(discord),
		cfg.RoleName,
		logger,
	)
	recorder := auditlog.NewRecorder(store, auditlog.NewDiscordEmbedSender(discord), logger)
	provider := identity.NewDiscord(cfg.ClientID, cfg.ClientSecret, cfg.CallbackURL)

	web := controllers.NewWeb(store, provider, engine, executor, recorder, cfg.SessionTTL, logger)

	viewEngine := html.New("./public/views", ".html")

	app := fiber.New(fiber.Config{
		Views:              viewEngine,
		AppName:            "Gatekeeper v1.0",
		EnableIPValidation: true,
	})
	web.RegisterRoutes(app)

	color.Cyan("[i] Starting WebServer on " + cfg.Addr())
	if err := app.Listen(cfg.Addr()); err != nil {
		logger.Error("web server stopped", slog.Any("err", err))
		os.Exit(1)
	}
}
