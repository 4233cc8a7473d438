package models

import "time"

// LinkedIdentity is the stable external account reference returned by a
// completed OAuth link. Immutable once built; lives only for the request.
type LinkedIdentity struct {
	UserID    string
	Handle    string
	CreatedAt time.Time
	Email     string
}

// RequestContext carries the network-origin metadata of one verification
// attempt, taken from the inbound callback.
type RequestContext struct {
	SourceIP string
	At       time.Time
}

// ReputationResult is what the IP reputation service knows about an address.
// CountryCode is "" when the service did not return one.
type ReputationResult struct {
	CountryCode string
	ProxyOrVPN  bool
}

type DenyReason string

const (
	DenyVPNDetected   DenyReason = "vpn_detected"
	DenyAccountTooNew DenyReason = "account_too_new"
)

// Decision is the outcome of the policy pipeline for a single attempt.
// Reason is set only when Allowed is false.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason DenyReason) Decision {
	return Decision{Reason: reason}
}

// MemberRef identifies the guild member a decision applies to.
type MemberRef struct {
	GuildID string
	UserID  string
}

// VerifySession correlates a verify-button click with the OAuth state that
// comes back on the callback. Single use: consuming it deletes it.
type VerifySession struct {
	Token     string
	UserID    string
	GuildID   string
	CreatedAt time.Time
}

// Expired reports whether the session is older than ttl at time now.
func (s VerifySession) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(s.CreatedAt) > ttl
}

// VerifyRecord is the audit row written for every resolved attempt.
type VerifyRecord struct {
	Token       string
	UserID      string
	GuildID     string
	Email       string
	IP          string
	CountryCode string
	ProxyOrVPN  bool
	Passed      bool
	Reason      string
	At          time.Time
}
