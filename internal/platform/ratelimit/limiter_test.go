package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(client)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiterSlidingWindow(t *testing.T) {
	l, now := newTestLimiter(t)
	window := 2 * time.Second
	limit := 3

	callAllow := func(member string) (bool, time.Duration) {
		allowed, retryAfter, err := l.Allow(context.Background(), "rl:test", limit, window, member)
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		return allowed, retryAfter
	}

	// 前 limit 次应放行
	for i := 0; i < limit; i++ {
		if allowed, _ := callAllow(fmt.Sprintf("m-%d", i)); !allowed {
			t.Fatalf("expected allowed at attempt %d", i+1)
		}
		*now = now.Add(100 * time.Millisecond)
	}

	// 第 limit+1 次应被拒绝，retryAfter = 最早一次 + window - now
	allowed, retryAfter := callAllow("over")
	if allowed {
		t.Fatalf("expected denied at attempt %d", limit+1)
	}
	if want := window - 300*time.Millisecond; retryAfter != want {
		t.Fatalf("retryAfter = %v, want %v", retryAfter, want)
	}

	// 等窗口滑过后应该重新放行
	*now = now.Add(retryAfter + time.Millisecond)
	if allowed, _ := callAllow("after"); !allowed {
		t.Fatalf("expected allowed after window slid")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t)
	ctx := context.Background()

	if ok, _, _ := l.Allow(ctx, "rl:a", 1, time.Minute, "1"); !ok {
		t.Fatal("first request on a denied")
	}
	if ok, _, _ := l.Allow(ctx, "rl:a", 1, time.Minute, "2"); ok {
		t.Fatal("second request on a allowed")
	}
	if ok, _, _ := l.Allow(ctx, "rl:b", 1, time.Minute, "1"); !ok {
		t.Fatal("key b should have its own window")
	}
}
