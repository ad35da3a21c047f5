package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-membergate/core"
)

// WebhookLogStore records every inbound webhook delivery for audit, including
// events the verifier does not act on.
type WebhookLogStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookLogRecord]
}

func (s *WebhookLogStore) Append(ctx context.Context, in core.WebhookLogEntry) (core.WebhookLogEntry, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.WebhookLogEntry{}, fmt.Errorf("sqlstore: webhook log store is not configured")
	}
	if strings.TrimSpace(in.Event) == "" {
		return core.WebhookLogEntry{}, fmt.Errorf("sqlstore: webhook event name is required")
	}
	if strings.TrimSpace(in.ID) == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	record := newWebhookLogRecord(in)
	var created core.WebhookLogEntry
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		created = inserted.toDomain()
		return nil
	})
	if err != nil {
		return core.WebhookLogEntry{}, err
	}
	return created, nil
}

func (s *WebhookLogStore) List(ctx context.Context, limit int) ([]core.WebhookLogEntry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: webhook log store is not configured")
	}
	criteria := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
	}
	if limit > 0 {
		criteria = append(criteria, repository.SelectPaginate(limit, 0))
	}
	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	out := make([]core.WebhookLogEntry, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

var _ core.WebhookLogStore = (*WebhookLogStore)(nil)
