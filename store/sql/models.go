package sqlstore

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-membergate/core"
)

type userRecord struct {
	bun.BaseModel `bun:"table:gate_users,alias:gu"`

	ID                    string         `bun:"id,pk"`
	Email                 string         `bun:"email,notnull"`
	Name                  string         `bun:"name,notnull"`
	Verified              bool           `bun:"verified,notnull"`
	Source                string         `bun:"source,notnull"`
	SubscriptionPlan      string         `bun:"subscription_plan"`
	SubscriptionStatus    string         `bun:"subscription_status"`
	SubscriptionStartDate *time.Time     `bun:"subscription_start_date,nullzero"`
	ProviderData          map[string]any `bun:"provider_data,type:jsonb"`
	CreatedAt             time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	ExpiresAt             *time.Time     `bun:"expires_at,nullzero"`
}

func newUserRecord(in core.UserRecord) *userRecord {
	record := &userRecord{
		ID:           strings.TrimSpace(in.ID),
		Email:        core.NormalizeEmail(in.Email),
		Name:         strings.TrimSpace(in.Name),
		Verified:     in.Verified,
		Source:       string(in.Source),
		ProviderData: copyAnyMap(in.ProviderData),
		CreatedAt:    in.CreatedAt,
		ExpiresAt:    cloneTimePointer(in.ExpiresAt),
	}
	if in.Subscription != nil {
		record.SubscriptionPlan = in.Subscription.Plan
		record.SubscriptionStatus = in.Subscription.Status
		record.SubscriptionStartDate = cloneTimePointer(in.Subscription.StartDate)
	}
	return record
}

func (r *userRecord) toDomain() core.UserRecord {
	if r == nil {
		return core.UserRecord{}
	}
	out := core.UserRecord{
		ID:           r.ID,
		Email:        r.Email,
		Name:         r.Name,
		Verified:     r.Verified,
		Source:       core.RecordSource(r.Source),
		ProviderData: copyAnyMap(r.ProviderData),
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    cloneTimePointer(r.ExpiresAt),
	}
	if r.SubscriptionPlan != "" || r.SubscriptionStatus != "" || r.SubscriptionStartDate != nil {
		out.Subscription = &core.SubscriptionInfo{
			Plan:      r.SubscriptionPlan,
			Status:    r.SubscriptionStatus,
			StartDate: cloneTimePointer(r.SubscriptionStartDate),
		}
	}
	return out
}

type webhookLogRecord struct {
	bun.BaseModel `bun:"table:gate_webhook_logs,alias:gwl"`

	ID         string         `bun:"id,pk"`
	DeliveryID string         `bun:"delivery_id"`
	Event      string         `bun:"event,notnull"`
	Payload    map[string]any `bun:"payload,type:jsonb"`
	CreatedAt  time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newWebhookLogRecord(in core.WebhookLogEntry) *webhookLogRecord {
	return &webhookLogRecord{
		ID:         strings.TrimSpace(in.ID),
		DeliveryID: strings.TrimSpace(in.DeliveryID),
		Event:      strings.TrimSpace(in.Event),
		Payload:    copyAnyMap(in.Payload),
		CreatedAt:  in.CreatedAt,
	}
}

func (r *webhookLogRecord) toDomain() core.WebhookLogEntry {
	if r == nil {
		return core.WebhookLogEntry{}
	}
	return core.WebhookLogEntry{
		ID:         r.ID,
		DeliveryID: r.DeliveryID,
		Event:      r.Event,
		Payload:    copyAnyMap(r.Payload),
		CreatedAt:  r.CreatedAt,
	}
}

func copyAnyMap(input map[string]any) map[string]any {
	if input == nil {
		return nil
	}
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = value
	}
	return out
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
