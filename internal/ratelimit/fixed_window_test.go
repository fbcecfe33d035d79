package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, limit int) (*FixedWindowLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := NewFixedWindowLimiter(client, "test:ratelimit", limit, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return limiter, mr
}

func TestFixedWindowLimiter(t *testing.T) {
	limiter, _ := newTestLimiter(t, 2)
	ctx := context.Background()

	first, err := limiter.Allow(ctx, "203.0.113.1")
	if err != nil || !first.Allowed || first.Remaining != 1 {
		t.Fatalf("first request: %+v, %v", first, err)
	}
	if second, _ := limiter.Allow(ctx, "203.0.113.1"); !second.Allowed || second.Remaining != 0 {
		t.Fatalf("second request should pass: %+v", second)
	}
	third, err := limiter.Allow(ctx, "203.0.113.1")
	if err != nil {
		t.Fatalf("third request: %v", err)
	}
	if third.Allowed {
		t.Fatalf("third request should be blocked")
	}
	if third.RetryAfter <= 0 || third.RetryAfter > time.Minute {
		t.Fatalf("unexpected retry after: %v", third.RetryAfter)
	}

	if other, _ := limiter.Allow(ctx, "203.0.113.2"); !other.Allowed {
		t.Fatalf("quota must be per key")
	}
}

func TestFixedWindowLimiterResetsNextWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t, 1)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if d, _ := limiter.Allow(ctx, "k"); !d.Allowed {
		t.Fatalf("first request should pass")
	}
	if d, _ := limiter.Allow(ctx, "k"); d.Allowed {
		t.Fatalf("second request in window should be blocked")
	}
	now = now.Add(time.Minute)
	if d, _ := limiter.Allow(ctx, "k"); !d.Allowed {
		t.Fatalf("request in next window should pass")
	}
}

func TestFixedWindowLimiterFailsClosed(t *testing.T) {
	limiter, mr := newTestLimiter(t, 1)
	mr.Close()
	d, err := limiter.Allow(context.Background(), "k")
	if err == nil || d.Allowed {
		t.Fatalf("limiter should fail closed on redis errors: %+v, %v", d, err)
	}
}

func TestNewFixedWindowLimiterValidates(t *testing.T) {
	if _, err := NewFixedWindowLimiter(nil, "", 1, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	if _, err := NewFixedWindowLimiter(client, "", 0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	l, err := NewFixedWindowLimiter(client, " ", 1, time.Second)
	if err != nil || l.prefix != defaultPrefix {
		t.Fatalf("expected default prefix, got %+v, %v", l, err)
	}
}
