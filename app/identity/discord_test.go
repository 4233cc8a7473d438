package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreationTime_KnownSnowflake(t *testing.T) {
	// 175928847299117063 >> 22 = 41944705796 ms after the Discord epoch,
	// i.e. 2016-04-30 11:18:25.796 UTC (the example from Discord's docs).
	got, err := CreationTime("175928847299117063")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 4, 30, 11, 18, 25, 796_000_000, time.UTC), got)
}

func TestCreationTime_EpochSnowflake(t *testing.T) {
	got, err := CreationTime("0")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestCreationTime_RejectsNonNumeric(t *testing.T) {
	_, err := CreationTime("not-a-snowflake")
	require.Error(t, err)
}

func TestAuthCodeURL_CarriesState(t *testing.T) {
	d := NewDiscord("cid", "secret", "https://example.test/callback")

	u := d.AuthCodeURL("session-token")
	assert.True(t, strings.HasPrefix(u, "https://discord.com/api/oauth2/authorize"))
	assert.Contains(t, u, "state=session-token")
	assert.Contains(t, u, "client_id=cid")
	assert.Contains(t, u, "identify+email")
}
