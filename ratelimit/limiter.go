package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-membergate/core"
)

const (
	defaultLimit      = 10
	defaultWindow     = time.Minute
	defaultMaxEntries = 4096
)

// ThrottledError reports that a key exhausted its window budget. RetryAfter
// is the remaining time until the window resets.
type ThrottledError struct {
	Key        string
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: key %q throttled for %s", strings.TrimSpace(e.Key), e.RetryAfter)
}

// ToServiceError converts the throttle into the rich error envelope the HTTP
// layer renders, carrying the retry hint as metadata.
func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"key": strings.TrimSpace(e.Key),
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	err := goerrors.New("Too many attempts. Please try again later.", goerrors.CategoryRateLimit).
		WithTextCode(core.ErrorRateLimited).
		WithCode(http.StatusTooManyRequests)
	err.WithMetadata(metadata)
	return err
}

type Config struct {
	Limit      int
	Window     time.Duration
	MaxEntries int
	Now        func() time.Time
}

type windowEntry struct {
	count       int
	windowStart time.Time
}

// FixedWindowLimiter counts attempts per key inside a fixed window. The entry
// map is bounded: lapsed windows are evicted on write.
type FixedWindowLimiter struct {
	limit      int
	window     time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*windowEntry
}

func NewFixedWindowLimiter(cfg Config) *FixedWindowLimiter {
	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &FixedWindowLimiter{
		limit:      limit,
		window:     window,
		maxEntries: maxEntries,
		now:        now,
		entries:    map[string]*windowEntry{},
	}
}

// Allow records one attempt for the key and returns a ThrottledError once the
// window budget is spent. An empty key is never throttled.
func (l *FixedWindowLimiter) Allow(_ context.Context, key string) error {
	if l == nil {
		return nil
	}
	key = strings.TrimSpace(strings.ToLower(key))
	if key == "" {
		return nil
	}

	now := l.now().UTC()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[key]
	if !exists || now.Sub(entry.windowStart) >= l.window {
		l.entries[key] = &windowEntry{count: 1, windowStart: now}
		l.cleanupLocked(now)
		return nil
	}

	entry.count++
	if entry.count <= l.limit {
		return nil
	}
	return ThrottledError{
		Key:        key,
		RetryAfter: entry.windowStart.Add(l.window).Sub(now),
	}
}

func (l *FixedWindowLimiter) cleanupLocked(now time.Time) {
	if len(l.entries) <= l.maxEntries {
		return
	}
	for key, entry := range l.entries {
		if now.Sub(entry.windowStart) >= l.window {
			delete(l.entries, key)
		}
		if len(l.entries) <= l.maxEntries {
			return
		}
	}
}
