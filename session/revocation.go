package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRevocationPrefix = "membergate:session:revoked:"

// MemoryRevocationStore keeps revoked session ids in process memory. Entries
// lapse at the session's natural expiry, so the set stays bounded by the
// number of logouts inside one TTL window.
type MemoryRevocationStore struct {
	Now func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		Now:     func() time.Time { return time.Now().UTC() },
		entries: map[string]time.Time{},
	}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, sessionID string, until time.Time) error {
	if s == nil {
		return fmt.Errorf("session: memory revocation store is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session: session id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[sessionID] = until.UTC()
	s.cleanupLocked()
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("session: memory revocation store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	until, exists := s.entries[strings.TrimSpace(sessionID)]
	if !exists {
		return false, nil
	}
	if s.now().After(until) {
		delete(s.entries, strings.TrimSpace(sessionID))
		return false, nil
	}
	return true, nil
}

func (s *MemoryRevocationStore) cleanupLocked() {
	now := s.now()
	for id, until := range s.entries {
		if now.After(until) {
			delete(s.entries, id)
		}
	}
}

func (s *MemoryRevocationStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RedisRevocationStore shares the revocation list across instances. Keys
// carry a TTL matching the session expiry so Redis evicts them on its own.
type RedisRevocationStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRevocationStore(client *redis.Client, prefix string) (*RedisRevocationStore, error) {
	if client == nil {
		return nil, fmt.Errorf("session: redis client is required")
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultRevocationPrefix
	}
	return &RedisRevocationStore{
		client: client,
		prefix: prefix,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("session: redis revocation store is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("session: session id is required")
	}
	ttl := until.UTC().Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, s.prefix+sessionID, "1", ttl).Err()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("session: redis revocation store is not configured")
	}
	count, err := s.client.Exists(ctx, s.prefix+strings.TrimSpace(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var (
	_ RevocationStore = (*MemoryRevocationStore)(nil)
	_ RevocationStore = (*RedisRevocationStore)(nil)
)
