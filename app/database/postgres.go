package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aoisuzu/Gatekeeper/app/models"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS verify_sessions (
		token      TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		guild_id   TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS log_channels (
		guild_id   TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS verify_records (
		id           BIGSERIAL PRIMARY KEY,
		token        TEXT NOT NULL,
		user_id      TEXT NOT NULL,
		guild_id     TEXT NOT NULL,
		email        TEXT NOT NULL DEFAULT '',
		ip           TEXT NOT NULL,
		country_code TEXT NOT NULL DEFAULT '',
		proxy_or_vpn BOOLEAN NOT NULL,
		passed       BOOLEAN NOT NULL,
		reason       TEXT NOT NULL DEFAULT '',
		at           TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ip_usage (
		ip      TEXT NOT NULL,
		user_id TEXT NOT NULL,
		used_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ip_usage_ip_idx ON ip_usage (ip, used_at)`,
}

// Postgres is the pgxpool-backed Store.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect opens the pool and makes sure the tables exist.
func Connect(ctx context.Context, connStr string, logger *slog.Logger) (*Postgres, error) {
	logger.Info("Connecting to database..")

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	logger.Info("Connected to database")
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) PutSession(ctx context.Context, s models.VerifySession) error {
	args := pgx.NamedArgs{
		"token":      s.Token,
		"user_id":    s.UserID,
		"guild_id":   s.GuildID,
		"created_at": s.CreatedAt,
	}

	if _, err := p.pool.Exec(ctx, "INSERT INTO verify_sessions (token, user_id, guild_id, created_at) VALUES (@token, @user_id, @guild_id, @created_at)", args); err != nil {
		return fmt.Errorf("store verify session: %w", err)
	}
	return nil
}

func (p *Postgres) ConsumeSession(ctx context.Context, token string) (models.VerifySession, error) {
	var s models.VerifySession
	err := p.pool.QueryRow(ctx,
		"DELETE FROM verify_sessions WHERE token = @token RETURNING token, user_id, guild_id, created_at",
		pgx.NamedArgs{"token": token},
	).Scan(&s.Token, &s.UserID, &s.GuildID, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.VerifySession{}, ErrSessionNotFound
	}
	if err != nil {
		return models.VerifySession{}, fmt.Errorf("consume verify session: %w", err)
	}
	return s, nil
}

func (p *Postgres) SetLogChannel(ctx context.Context, guildID, channelID string) (bool, error) {
	args := pgx.NamedArgs{
		"guild_id":   guildID,
		"channel_id": channelID,
	}

	var existing bool
	if err := p.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM log_channels WHERE guild_id = @guild_id)", args).Scan(&existing); err != nil {
		return false, fmt.Errorf("search for existing log channel: %w", err)
	}

	if _, err := p.pool.Exec(ctx, "INSERT INTO log_channels (guild_id, channel_id) VALUES (@guild_id, @channel_id) ON CONFLICT (guild_id) DO UPDATE SET channel_id = @channel_id", args); err != nil {
		return false, fmt.Errorf("set log channel: %w", err)
	}
	return existing, nil
}

func (p *Postgres) UnsetLogChannel(ctx context.Context, guildID string) (bool, error) {
	tag, err := p.pool.Exec(ctx, "DELETE FROM log_channels WHERE guild_id = @guild_id", pgx.NamedArgs{
		"guild_id": guildID,
	})
	if err != nil {
		return false, fmt.Errorf("unset log channel: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) LogChannel(ctx context.Context, guildID string) (string, error) {
	var channelID string
	err := p.pool.QueryRow(ctx, "SELECT channel_id FROM log_channels WHERE guild_id = @guild_id", pgx.NamedArgs{
		"guild_id": guildID,
	}).Scan(&channelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find log channel: %w", err)
	}
	return channelID, nil
}

func (p *Postgres) AddRecord(ctx context.Context, rec models.VerifyRecord) error {
	args := pgx.NamedArgs{
		"token":        rec.Token,
		"user_id":      rec.UserID,
		"guild_id":     rec.GuildID,
		"email":        rec.Email,
		"ip":           rec.IP,
		"country_code": rec.CountryCode,
		"proxy_or_vpn": rec.ProxyOrVPN,
		"passed":       rec.Passed,
		"reason":       rec.Reason,
		"at":           rec.At,
	}

	if _, err := p.pool.Exec(ctx, "INSERT INTO verify_records (token, user_id, guild_id, email, ip, country_code, proxy_or_vpn, passed, reason, at) VALUES (@token, @user_id, @guild_id, @email, @ip, @country_code, @proxy_or_vpn, @passed, @reason, @at)", args); err != nil {
		return fmt.Errorf("store verify record: %w", err)
	}
	return nil
}

func (p *Postgres) RecordIPUsage(ctx context.Context, ip, userID string, at time.Time) error {
	if _, err := p.pool.Exec(ctx, "INSERT INTO ip_usage (ip, user_id, used_at) VALUES (@ip, @user_id, @used_at)", pgx.NamedArgs{
		"ip":      ip,
		"user_id": userID,
		"used_at": at,
	}); err != nil {
		return fmt.Errorf("record ip usage: %w", err)
	}
	return nil
}

func (p *Postgres) RecentIPUsers(ctx context.Context, ip, userID string, since time.Time) ([]string, error) {
	rows, err := p.pool.Query(ctx, "SELECT DISTINCT user_id FROM ip_usage WHERE ip = @ip AND user_id <> @user_id AND used_at >= @since", pgx.NamedArgs{
		"ip":      ip,
		"user_id": userID,
		"since":   since,
	})
	if err != nil {
		return nil, fmt.Errorf("query ip usage: %w", err)
	}

	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect ip usage: %w", err)
	}
	return users, nil
}
