package core

import (
	"strings"
	"time"
)

// VerificationOutcome tags the terminal state of a verification call.
type VerificationOutcome string

const (
	OutcomeFound         VerificationOutcome = "found"
	OutcomeNotFound      VerificationOutcome = "not_found"
	OutcomeUpstreamError VerificationOutcome = "upstream_error"
)

// RecordSource identifies how a user record entered the store.
type RecordSource string

const (
	RecordSourceRemote  RecordSource = "remote"
	RecordSourceWebhook RecordSource = "webhook"
	RecordSourceManual  RecordSource = "manual"
	RecordSourceTest    RecordSource = "test"
)

type SubscriptionInfo struct {
	Plan      string     `json:"plan"`
	Status    string     `json:"status"`
	StartDate *time.Time `json:"startDate,omitempty"`
}

// UserRecord is a verified purchaser. Email is the lookup key and is always
// normalized to lowercase before storage or lookup. Records are append-only:
// they are never updated in place and never deleted by this module.
type UserRecord struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	Name         string            `json:"name"`
	Verified     bool              `json:"verified"`
	Source       RecordSource      `json:"source"`
	Subscription *SubscriptionInfo `json:"subscription,omitempty"`
	ProviderData map[string]any    `json:"providerData,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	ExpiresAt    *time.Time        `json:"expiresAt,omitempty"`
}

type VerifyRequest struct {
	Email    string
	TestMode bool
}

// VerificationResult is produced fresh per request; only a Found outcome
// causes a UserRecord to be persisted.
type VerificationResult struct {
	Outcome VerificationOutcome
	Record  *UserRecord
	Reason  string
	Detail  string
}

func (r VerificationResult) IsCustomer() bool {
	return r.Outcome == OutcomeFound
}

// WebhookEvent is an inbound provider notification. Payload carries the raw
// decoded body; Buyer fields are only set for purchase events.
type WebhookEvent struct {
	DeliveryID string
	Event      string
	BuyerEmail string
	BuyerName  string
	Payload    map[string]any
	ReceivedAt time.Time
}

type WebhookLogEntry struct {
	ID         string
	DeliveryID string
	Event      string
	Payload    map[string]any
	CreatedAt  time.Time
}

// NormalizeEmail lowercases and trims an email for use as a store key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailLocalPart returns the part before the first @, or the whole input when
// no @ is present.
func EmailLocalPart(email string) string {
	normalized := NormalizeEmail(email)
	if at := strings.IndexByte(normalized, '@'); at >= 0 {
		return normalized[:at]
	}
	return normalized
}
