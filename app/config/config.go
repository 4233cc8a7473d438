package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything read from the environment at startup. Every
// required value missing is a boot failure, never a per-request one.
type Config struct {
	// Discord bot + OAuth application
	DiscordToken  string `env:"DISCORD_TOKEN,required"`
	ClientID      string `env:"DISCORD_CLIENT_ID,required"`
	ClientSecret  string `env:"DISCORD_CLIENT_SECRET,required"`
	CallbackURL   string `env:"DISCORD_CALLBACK_URL,required"`
	GuildID       string `env:"TARGET_GUILD_ID,required"`
	RoleName      string `env:"ROLE_NAME" envDefault:"Verified"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"."`

	// IP reputation service
	IPInfoToken string `env:"IPINFO_TOKEN,required"`

	// Web side
	BaseURL string `env:"BASE_URL,required"`
	Port    int    `env:"PORT" envDefault:"3000"`

	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`

	// How long a verify link stays valid once sent.
	SessionTTL time.Duration `env:"VERIFY_TIMEOUT" envDefault:"15m"`
}

// Load parses the environment into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address for the web server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
