package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-membergate/core"
)

func newTestLimiter(limit int, window time.Duration, clock *time.Time) *FixedWindowLimiter {
	return NewFixedWindowLimiter(Config{
		Limit:  limit,
		Window: window,
		Now:    func() time.Time { return *clock },
	})
}

func TestFixedWindowLimiter_AllowsUpToLimit(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(3, time.Minute, &clock)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, "login:maria@example.com"); err != nil {
			t.Fatalf("attempt %d should pass: %v", i+1, err)
		}
	}

	err := limiter.Allow(ctx, "login:maria@example.com")
	var throttled ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("expected throttled error, got %v", err)
	}
	if throttled.RetryAfter <= 0 || throttled.RetryAfter > time.Minute {
		t.Fatalf("unexpected retry-after %s", throttled.RetryAfter)
	}
}

func TestFixedWindowLimiter_WindowResets(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(1, time.Minute, &clock)

	ctx := context.Background()
	if err := limiter.Allow(ctx, "login:maria@example.com"); err != nil {
		t.Fatalf("first attempt should pass: %v", err)
	}
	if err := limiter.Allow(ctx, "login:maria@example.com"); err == nil {
		t.Fatalf("expected second attempt to throttle")
	}

	clock = clock.Add(time.Minute)
	if err := limiter.Allow(ctx, "login:maria@example.com"); err != nil {
		t.Fatalf("attempt after window reset should pass: %v", err)
	}
}

func TestFixedWindowLimiter_KeysAreIndependent(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(1, time.Minute, &clock)

	ctx := context.Background()
	if err := limiter.Allow(ctx, "login:maria@example.com"); err != nil {
		t.Fatalf("first key should pass: %v", err)
	}
	if err := limiter.Allow(ctx, "login:joao@example.com"); err != nil {
		t.Fatalf("distinct key should pass: %v", err)
	}
}

func TestFixedWindowLimiter_EmptyKeyIsNeverThrottled(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := newTestLimiter(1, time.Minute, &clock)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := limiter.Allow(ctx, "  "); err != nil {
			t.Fatalf("empty key should never throttle: %v", err)
		}
	}
}

func TestThrottledError_ServiceEnvelope(t *testing.T) {
	throttled := ThrottledError{
		Key:        "login:maria@example.com",
		RetryAfter: 30 * time.Second,
	}

	rich := throttled.ToServiceError()
	if rich.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category, got %v", rich.Category)
	}
	if rich.TextCode != core.ErrorRateLimited {
		t.Fatalf("expected %s text code, got %q", core.ErrorRateLimited, rich.TextCode)
	}
	if rich.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 code, got %d", rich.Code)
	}
	if rich.Metadata["retry_after_ms"] != int64(30000) {
		t.Fatalf("expected retry metadata, got %#v", rich.Metadata)
	}
}
