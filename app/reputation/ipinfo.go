package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aoisuzu/Gatekeeper/app/models"
)

// ErrUnavailable means the reputation service could not give an answer.
// Callers must fail closed on it: an outage is never "not a proxy".
var ErrUnavailable = errors.New("reputation service unavailable")

// Lookup classifies an IP address by geolocation and proxy/VPN status.
type Lookup interface {
	Lookup(ctx context.Context, ip string) (models.ReputationResult, error)
}

type ipInfoBody struct {
	Country string `json:"country"`
	Privacy struct {
		VPN   bool `json:"vpn"`
		Proxy bool `json:"proxy"`
		Tor   bool `json:"tor"`
	} `json:"privacy"`
}

// IPInfoClient queries ipinfo.io with a bearer token.
type IPInfoClient struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

func NewIPInfoClient(token string, logger *slog.Logger) *IPInfoClient {
	return &IPInfoClient{
		baseURL: "https://ipinfo.io",
		token:   token,
		client:  &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
	}
}

// NewIPInfoClientURL is NewIPInfoClient against a non-default endpoint.
func NewIPInfoClientURL(baseURL, token string, logger *slog.Logger) *IPInfoClient {
	c := NewIPInfoClient(token, logger)
	c.baseURL = baseURL
	return c
}

func (c *IPInfoClient) Lookup(ctx context.Context, ip string) (models.ReputationResult, error) {
	u := fmt.Sprintf("%s/%s?token=%s", c.baseURL, url.PathEscape(ip), url.QueryEscape(c.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.ReputationResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("ip lookup request failed", slog.Any("err", err))
		return models.ReputationResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("ip lookup bad status", slog.Int("status", resp.StatusCode))
		return models.ReputationResult{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body ipInfoBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("ip lookup malformed response", slog.Any("err", err))
		return models.ReputationResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return models.ReputationResult{
		CountryCode: strings.ToUpper(strings.TrimSpace(body.Country)),
		ProxyOrVPN:  body.Privacy.VPN || body.Privacy.Proxy || body.Privacy.Tor,
	}, nil
}
