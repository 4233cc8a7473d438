package database

import (
	"context"
	"errors"
	"time"

	"github.com/aoisuzu/Gatekeeper/app/models"
)

// ErrSessionNotFound means the token was never issued, already consumed, or
// cleaned up. Consumed and unknown tokens are deliberately indistinguishable.
var ErrSessionNotFound = errors.New("verify session not found")

// Store is the minimal persistence the flow needs: pending verify sessions,
// the per-guild log channel, audit records and recent IP usage.
type Store interface {
	// PutSession records a freshly issued verify session.
	PutSession(ctx context.Context, s models.VerifySession) error
	// ConsumeSession returns the session for token and removes it, so a
	// consumed token can never be replayed.
	ConsumeSession(ctx context.Context, token string) (models.VerifySession, error)

	// SetLogChannel sets the verification log channel for a guild,
	// returning true when an existing setting was replaced.
	SetLogChannel(ctx context.Context, guildID, channelID string) (bool, error)
	// UnsetLogChannel removes the setting, returning true when one existed.
	UnsetLogChannel(ctx context.Context, guildID string) (bool, error)
	// LogChannel returns the configured channel id, or "" when unset.
	LogChannel(ctx context.Context, guildID string) (string, error)

	// AddRecord persists the audit row for a resolved attempt.
	AddRecord(ctx context.Context, rec models.VerifyRecord) error

	// RecordIPUsage notes that userID verified from ip at the given time.
	RecordIPUsage(ctx context.Context, ip, userID string, at time.Time) error
	// RecentIPUsers returns the distinct users other than userID that used
	// ip since the given time.
	RecentIPUsers(ctx context.Context, ip, userID string, since time.Time) ([]string, error)
}
