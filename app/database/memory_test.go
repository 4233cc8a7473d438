package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoisuzu/Gatekeeper/app/models"
)

var ctx = context.Background()

func TestConsumeSession_SingleUse(t *testing.T) {
	m := NewMemory()
	s := models.VerifySession{Token: "tok", UserID: "u1", GuildID: "g1", CreatedAt: time.Now()}
	require.NoError(t, m.PutSession(ctx, s))

	got, err := m.ConsumeSession(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)

	// A consumed token cannot be replayed.
	_, err = m.ConsumeSession(ctx, "tok")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestConsumeSession_UnknownToken(t *testing.T) {
	m := NewMemory()
	_, err := m.ConsumeSession(ctx, "never-issued")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionExpiry(t *testing.T) {
	now := time.Now()
	s := models.VerifySession{Token: "tok", CreatedAt: now.Add(-20 * time.Minute)}
	assert.True(t, s.Expired(15*time.Minute, now))
	assert.False(t, s.Expired(30*time.Minute, now))
}

func TestLogChannel_SetUnsetRoundtrip(t *testing.T) {
	m := NewMemory()

	ch, err := m.LogChannel(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "", ch)

	updated, err := m.SetLogChannel(ctx, "g1", "c1")
	require.NoError(t, err)
	assert.False(t, updated)

	updated, err = m.SetLogChannel(ctx, "g1", "c2")
	require.NoError(t, err)
	assert.True(t, updated)

	ch, err = m.LogChannel(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "c2", ch)

	existed, err := m.UnsetLogChannel(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = m.UnsetLogChannel(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestRecentIPUsers_WindowAndSelfExclusion(t *testing.T) {
	m := NewMemory()
	now := time.Now()

	require.NoError(t, m.RecordIPUsage(ctx, "203.0.113.9", "u1", now.AddDate(0, 0, -10)))
	require.NoError(t, m.RecordIPUsage(ctx, "203.0.113.9", "u2", now.AddDate(0, 0, -2)))
	require.NoError(t, m.RecordIPUsage(ctx, "203.0.113.9", "u3", now.Add(-time.Hour)))
	require.NoError(t, m.RecordIPUsage(ctx, "203.0.113.9", "u3", now.Add(-time.Minute)))

	users, err := m.RecentIPUsers(ctx, "203.0.113.9", "u3", now.AddDate(0, 0, -7))
	require.NoError(t, err)
	// u1 is outside the window, u3 is the requester, u2 remains.
	assert.Equal(t, []string{"u2"}, users)
}
