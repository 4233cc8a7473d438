package controllers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/aoisuzu/Gatekeeper/app/database"
	"github.com/aoisuzu/Gatekeeper/app/models"
)

// verifyButtonID is the fixed custom id of the verify control.
const verifyButtonID = "verify"

// Bot is the chat-side entry point: it renders the verification prompt,
// answers the verify button with the external link, and handles the log
// channel admin commands.
type Bot struct {
	session *discordgo.Session
	store   database.Store
	prefix  string
	baseURL string
	logger  *slog.Logger
}

func NewBot(session *discordgo.Session, store database.Store, prefix, baseURL string, logger *slog.Logger) *Bot {
	b := &Bot{
		session: session,
		store:   store,
		prefix:  prefix,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessage)
	session.AddHandler(b.onInteraction)
	return b
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("connected to Discord",
		slog.String("username", r.User.Username),
		slog.String("id", r.User.ID))
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !strings.HasPrefix(m.Content, b.prefix) {
		return
	}

	args := strings.Fields(strings.TrimPrefix(m.Content, b.prefix))
	if len(args) == 0 {
		return
	}

	switch args[0] {
	case "verify":
		b.sendPrompt(s, m.ChannelID)
	case "log":
		b.handleLogCommand(s, m, args[1:])
	}
}

// sendPrompt posts the verification prompt with the verify button. Re-running
// the command always produces a fresh prompt.
func (b *Bot) sendPrompt(s *discordgo.Session, channelID string) {
	_, err := s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "認証",
			Description: "以下のボタンをクリックして認証を行ってください。",
			Color:       65280,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Style:    discordgo.PrimaryButton,
						Label:    "認証",
						CustomID: verifyButtonID,
					},
				},
			},
		},
	})
	if err != nil {
		b.logger.Warn("failed to send verification prompt", slog.String("channel_id", channelID), slog.Any("err", err))
	}
}

func (b *Bot) handleLogCommand(s *discordgo.Session, m *discordgo.MessageCreate, args []string) {
	reply := func(content string) {
		if _, err := s.ChannelMessageSend(m.ChannelID, content); err != nil {
			b.logger.Warn("failed to send message to channel", slog.String("id", m.ChannelID), slog.Any("err", err))
		}
	}

	ctx := context.Background()

	switch {
	case len(args) >= 2 && args[0] == "set":
		channelID, ok := parseChannelMention(args[1])
		if !ok {
			reply("Usage: " + b.prefix + "log set #channel OR " + b.prefix + "log unset")
			return
		}
		if _, err := b.store.SetLogChannel(ctx, m.GuildID, channelID); err != nil {
			b.logger.Warn("failed to set log channel", slog.Any("err", err))
			reply("ログチャンネルを設定できませんでした。")
			return
		}
		reply(fmt.Sprintf("Verification log channel set to <#%s>", channelID))
	case len(args) >= 1 && args[0] == "unset":
		existed, err := b.store.UnsetLogChannel(ctx, m.GuildID)
		if err != nil {
			b.logger.Warn("failed to unset log channel", slog.Any("err", err))
			return
		}
		if existed {
			reply("Verification log channel unset.")
		} else {
			reply("No verification log channel was set.")
		}
	default:
		reply("Usage: " + b.prefix + "log set #channel OR " + b.prefix + "log unset")
	}
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	if i.MessageComponentData().CustomID != verifyButtonID {
		return
	}
	if i.Member == nil || i.Member.User == nil {
		return
	}

	// Ack first: the interaction window is short, everything else can
	// follow up afterwards.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:   discordgo.MessageFlagsEphemeral,
			Content: "認証を開始します。",
		},
	}); err != nil {
		b.logger.Warn("failed to ack verify button", slog.Any("err", err))
		return
	}

	token := uuid.NewString()
	if err := b.store.PutSession(context.Background(), models.VerifySession{
		Token:     token,
		UserID:    i.Member.User.ID,
		GuildID:   i.GuildID,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		b.logger.Warn("failed to store verify session", slog.Any("err", err))
		return
	}

	link := fmt.Sprintf("%s/auth/discord?token=%s", b.baseURL, token)
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Flags:   discordgo.MessageFlagsEphemeral,
		Content: fmt.Sprintf("[認証を行う](%s)", link),
	}); err != nil {
		b.logger.Warn("failed to send verification link", slog.Any("err", err))
	}
}

// parseChannelMention extracts the id from a <#123456> mention.
func parseChannelMention(s string) (string, bool) {
	if !strings.HasPrefix(s, "<#") || !strings.HasSuffix(s, ">") {
		return "", false
	}
	id := s[2 : len(s)-1]
	if id == "" {
		return "", false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return id, true
}
