package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/aoisuzu/Gatekeeper/app/models"
	"github.com/aoisuzu/Gatekeeper/app/reputation"
)

const (
	trustedCountry = "JP"
	minAccountDays = 3
)

// Engine decides whether a freshly linked identity gets access.
type Engine struct {
	reputation reputation.Lookup
	now        func() time.Time
}

func NewEngine(rep reputation.Lookup) *Engine {
	return &Engine{reputation: rep, now: time.Now}
}

// NewEngineClock is NewEngine with an injected clock.
func NewEngineClock(rep reputation.Lookup, now func() time.Time) *Engine {
	return &Engine{reputation: rep, now: now}
}

// Evaluate runs the decision pipeline for one attempt and returns the
// decision together with the reputation data it was based on. Checks are
// ordered and short-circuiting: a VPN/proxy hit denies before anything else
// is looked at, and the account-age check only applies to traffic outside
// the trusted country. A failed reputation lookup is an error, never an
// Allow.
func (e *Engine) Evaluate(ctx context.Context, identity models.LinkedIdentity, rc models.RequestContext) (models.Decision, models.ReputationResult, error) {
	rep, err := e.reputation.Lookup(ctx, rc.SourceIP)
	if err != nil {
		return models.Decision{}, models.ReputationResult{}, fmt.Errorf("reputation lookup for %s: %w", rc.SourceIP, err)
	}

	if rep.ProxyOrVPN {
		return models.Deny(models.DenyVPNDetected), rep, nil
	}

	if rep.CountryCode != trustedCountry {
		if accountAgeDays(identity.CreatedAt, e.now()) < minAccountDays {
			return models.Deny(models.DenyAccountTooNew), rep, nil
		}
	}

	return models.Allow(), rep, nil
}

// accountAgeDays is the whole number of days between creation and now, both
// taken in UTC. A creation time in the future (clock skew) comes out negative,
// which the age check treats the same as any other too-new account.
func accountAgeDays(createdAt, now time.Time) int {
	return int(now.UTC().Sub(createdAt.UTC()).Hours() / 24)
}
