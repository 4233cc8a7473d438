package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aoisuzu/Gatekeeper/app/models"
	"github.com/aoisuzu/Gatekeeper/app/reputation"
)

type fakeLookup struct {
	result models.ReputationResult
	err    error
}

func (f fakeLookup) Lookup(ctx context.Context, ip string) (models.ReputationResult, error) {
	return f.result, f.err
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func engineWith(rep models.ReputationResult) *Engine {
	return NewEngineClock(fakeLookup{result: rep}, func() time.Time { return now })
}

func identityCreated(at time.Time) models.LinkedIdentity {
	return models.LinkedIdentity{UserID: "1234", Handle: "tester", CreatedAt: at}
}

func rc() models.RequestContext {
	return models.RequestContext{SourceIP: "203.0.113.9", At: now}
}

func TestEvaluate_ProxyDeniesRegardlessOfCountryAndAge(t *testing.T) {
	for _, country := range []string{"JP", "US", ""} {
		e := engineWith(models.ReputationResult{CountryCode: country, ProxyOrVPN: true})

		d, _, err := e.Evaluate(context.Background(), identityCreated(now.AddDate(-1, 0, 0)), rc())
		require.NoError(t, err)
		assert.False(t, d.Allowed, "country %q", country)
		assert.Equal(t, models.DenyVPNDetected, d.Reason)
	}
}

func TestEvaluate_TrustedCountrySkipsAgeCheck(t *testing.T) {
	e := engineWith(models.ReputationResult{CountryCode: "JP"})

	// Account created right now would fail the age check anywhere else.
	d, _, err := e.Evaluate(context.Background(), identityCreated(now), rc())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluate_ForeignAccountAgeBoundary(t *testing.T) {
	tests := []struct {
		name      string
		createdAt time.Time
		allowed   bool
	}{
		{"exactly 3 days", now.AddDate(0, 0, -3), true},
		{"2 days 23 hours", now.Add(-(2*24 + 23) * time.Hour), false},
		{"10 days", now.AddDate(0, 0, -10), true},
		{"created now", now, false},
		{"created in the future", now.Add(12 * time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := engineWith(models.ReputationResult{CountryCode: "US"})

			d, _, err := e.Evaluate(context.Background(), identityCreated(tt.createdAt), rc())
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, d.Allowed)
			if !tt.allowed {
				assert.Equal(t, models.DenyAccountTooNew, d.Reason)
			}
		})
	}
}

func TestEvaluate_MissingCountryTakesStrictBranch(t *testing.T) {
	e := engineWith(models.ReputationResult{CountryCode: ""})

	d, _, err := e.Evaluate(context.Background(), identityCreated(now.AddDate(0, 0, -1)), rc())
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, models.DenyAccountTooNew, d.Reason)
}

func TestEvaluate_TimezoneDoesNotShiftAge(t *testing.T) {
	jst := time.FixedZone("JST", 9*3600)
	created := now.AddDate(0, 0, -3).In(jst)
	e := engineWith(models.ReputationResult{CountryCode: "US"})

	d, _, err := e.Evaluate(context.Background(), identityCreated(created), rc())
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestEvaluate_LookupFailureIsNeverAllow(t *testing.T) {
	injected := []error{
		reputation.ErrUnavailable,
		errors.New("dial tcp: connection refused"),
		context.DeadlineExceeded,
	}
	for _, lookupErr := range injected {
		e := NewEngineClock(fakeLookup{err: lookupErr}, func() time.Time { return now })

		d, _, err := e.Evaluate(context.Background(), identityCreated(now.AddDate(-1, 0, 0)), rc())
		require.Error(t, err)
		assert.False(t, d.Allowed, "injected %v", lookupErr)
	}
}

func TestEvaluate_WrapsUnavailable(t *testing.T) {
	e := NewEngineClock(fakeLookup{err: reputation.ErrUnavailable}, func() time.Time { return now })

	_, _, err := e.Evaluate(context.Background(), identityCreated(now), rc())
	require.ErrorIs(t, err, reputation.ErrUnavailable)
}
