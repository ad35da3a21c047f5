package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-membergate/core"
)

const userCacheKeyPrefix = "membergate::user::v1"

// CachedUserStore wraps a user store with a read-through cache keyed by
// normalized email. Appends invalidate the key so a verify-then-lookup
// sequence observes its own write.
type CachedUserStore struct {
	base  core.UserStore
	cache repositorycache.CacheService
}

func NewCachedUserStore(base core.UserStore, cacheService repositorycache.CacheService) (*CachedUserStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base user store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: user cache service is required")
	}
	return &CachedUserStore{base: base, cache: cacheService}, nil
}

// UserCacheKey returns the deterministic cache key for user lookups:
// membergate::user::v1::<normalized-email>, the email segment URL-path escaped.
func UserCacheKey(email string) (string, error) {
	normalized := core.NormalizeEmail(email)
	if normalized == "" {
		return "", fmt.Errorf("sqlstore: email is required")
	}
	return strings.Join([]string{userCacheKeyPrefix, url.PathEscape(normalized)}, "::"), nil
}

type cachedUserEntry struct {
	Record core.UserRecord
	Found  bool
}

func (s *CachedUserStore) FindByEmail(ctx context.Context, email string) (core.UserRecord, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserRecord{}, false, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	cacheKey, err := UserCacheKey(email)
	if err != nil {
		return core.UserRecord{}, false, err
	}

	entry, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (cachedUserEntry, error) {
		record, found, fetchErr := s.base.FindByEmail(ctx, email)
		if fetchErr != nil {
			return cachedUserEntry{}, fetchErr
		}
		return cachedUserEntry{Record: record, Found: found}, nil
	})
	if err != nil {
		return core.UserRecord{}, false, err
	}
	return entry.Record, entry.Found, nil
}

func (s *CachedUserStore) Append(ctx context.Context, record core.UserRecord) (core.UserRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.UserRecord{}, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	created, err := s.base.Append(ctx, record)
	if err != nil {
		return core.UserRecord{}, err
	}
	cacheKey, err := UserCacheKey(created.Email)
	if err != nil {
		return core.UserRecord{}, err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return core.UserRecord{}, err
	}
	return created, nil
}

func (s *CachedUserStore) ListAll(ctx context.Context) ([]core.UserRecord, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached user store is not configured")
	}
	return s.base.ListAll(ctx)
}

var _ core.UserStore = (*CachedUserStore)(nil)
