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

// UserStore persists verified purchaser records. The store is append-only:
// records are inserted once and never updated in place. FindByEmail returns
// the first match for a normalized email.
type UserStore struct {
	db   *bun.DB
	repo repository.Repository[*userRecord]
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (core.UserRecord, bool, error) {
	if s == nil || s.repo == nil {
		return core.UserRecord{}, false, fmt.Errorf("sqlstore: user store is not configured")
	}
	normalized := core.NormalizeEmail(email)
	if normalized == "" {
		return core.UserRecord{}, false, fmt.Errorf("sqlstore: email is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("email", "=", normalized),
		repository.OrderBy("created_at ASC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.UserRecord{}, false, err
	}
	if len(records) == 0 {
		return core.UserRecord{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *UserStore) Append(ctx context.Context, in core.UserRecord) (core.UserRecord, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.UserRecord{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	normalized := core.NormalizeEmail(in.Email)
	if normalized == "" {
		return core.UserRecord{}, fmt.Errorf("sqlstore: email is required")
	}
	in.Email = normalized
	if strings.TrimSpace(in.ID) == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	record := newUserRecord(in)
	var created core.UserRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		created = inserted.toDomain()
		return nil
	})
	if err != nil {
		return core.UserRecord{}, err
	}
	return created, nil
}

func (s *UserStore) ListAll(ctx context.Context) ([]core.UserRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: user store is not configured")
	}
	records, _, err := s.repo.List(ctx, repository.OrderBy("created_at ASC"))
	if err != nil {
		return nil, err
	}
	out := make([]core.UserRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

var _ core.UserStore = (*UserStore)(nil)
