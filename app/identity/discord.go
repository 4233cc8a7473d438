package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/aoisuzu/Gatekeeper/app/models"
)

// Provider performs the external account-link handshake. The policy engine
// only ever sees the LinkedIdentity it returns.
type Provider interface {
	// AuthCodeURL builds the URL the user is sent to; state comes back
	// unchanged on the callback.
	AuthCodeURL(state string) string
	// Exchange turns the callback's authorization code into a linked
	// identity.
	Exchange(ctx context.Context, code string) (models.LinkedIdentity, error)
}

// discordEpoch is the first millisecond of 2015, the zero point of snowflake
// timestamps.
const discordEpoch = 1420070400000

// CreationTime extracts the account creation time embedded in a snowflake id.
func CreationTime(snowflake string) (time.Time, error) {
	id, err := strconv.ParseUint(snowflake, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse snowflake %q: %w", snowflake, err)
	}
	ms := int64(id>>22) + discordEpoch
	return time.UnixMilli(ms).UTC(), nil
}

type discordUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Discord links accounts through Discord's OAuth2 authorization-code flow.
type Discord struct {
	oauth   *oauth2.Config
	userURL string
}

func NewDiscord(clientID, clientSecret, callbackURL string) *Discord {
	return &Discord{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
		userURL: "https://discord.com/api/users/@me",
	}
}

func (d *Discord) AuthCodeURL(state string) string {
	return d.oauth.AuthCodeURL(state)
}

func (d *Discord) Exchange(ctx context.Context, code string) (models.LinkedIdentity, error) {
	token, err := d.oauth.Exchange(ctx, code)
	if err != nil {
		return models.LinkedIdentity{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.userURL, nil)
	if err != nil {
		return models.LinkedIdentity{}, err
	}

	resp, err := d.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return models.LinkedIdentity{}, fmt.Errorf("fetch linked user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.LinkedIdentity{}, fmt.Errorf("fetch linked user: status %d", resp.StatusCode)
	}

	var user discordUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return models.LinkedIdentity{}, fmt.Errorf("decode linked user: %w", err)
	}

	createdAt, err := CreationTime(user.ID)
	if err != nil {
		return models.LinkedIdentity{}, err
	}

	return models.LinkedIdentity{
		UserID:    user.ID,
		Handle:    user.Username,
		CreatedAt: createdAt,
		Email:     user.Email,
	}, nil
}
