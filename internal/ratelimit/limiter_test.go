package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestLimiter connects to a local Redis and clears leftover test keys.
// Tests using this helper require a running Redis on localhost:6379.
func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		for _, rule := range []Rule{RuleMessage, RuleTyping, RuleConnect} {
			iter := client.Scan(ctx, 0, rule.Key+"test_*", 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewLimiter(client)
}

func TestAllow_UnderLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < RuleMessage.Limit; i++ {
		ok, err := l.Allow(ctx, "test_under", RuleMessage)
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !ok {
			t.Fatalf("request %d of %d was limited", i+1, RuleMessage.Limit)
		}
	}
}

func TestAllow_OverLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < RuleMessage.Limit; i++ {
		if ok, _ := l.Allow(ctx, "test_over", RuleMessage); !ok {
			t.Fatalf("request %d unexpectedly limited", i+1)
		}
	}

	ok, err := l.Allow(ctx, "test_over", RuleMessage)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if ok {
		t.Errorf("request %d should have been limited", RuleMessage.Limit+1)
	}
}

func TestAllow_IdentifiersAreIndependent(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < RuleMessage.Limit+1; i++ {
		l.Allow(ctx, "test_noisy", RuleMessage)
	}

	ok, err := l.Allow(ctx, "test_quiet", RuleMessage)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !ok {
		t.Error("an unrelated identifier was limited")
	}
}

func TestAllow_WindowHasTTL(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	if _, err := l.Allow(ctx, "test_ttl", RuleTyping); err != nil {
		t.Fatalf("Allow() error: %v", err)
	}

	ttl, err := l.client.TTL(ctx, RuleTyping.Key+"test_ttl").Result()
	if err != nil {
		t.Fatalf("TTL() error: %v", err)
	}
	if ttl <= 0 || ttl > RuleTyping.Window {
		t.Errorf("expected TTL in (0,%v], got %v", RuleTyping.Window, ttl)
	}
}

func TestRemaining(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	remaining, err := l.Remaining(ctx, "test_remaining", RuleMessage)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != RuleMessage.Limit {
		t.Errorf("fresh identifier: expected %d remaining, got %d", RuleMessage.Limit, remaining)
	}

	l.Allow(ctx, "test_remaining", RuleMessage)
	l.Allow(ctx, "test_remaining", RuleMessage)

	remaining, err = l.Remaining(ctx, "test_remaining", RuleMessage)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != RuleMessage.Limit-2 {
		t.Errorf("expected %d remaining after 2 requests, got %d", RuleMessage.Limit-2, remaining)
	}
}

func TestRemaining_NeverNegative(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < RuleMessage.Limit+5; i++ {
		l.Allow(ctx, "test_negative", RuleMessage)
	}

	remaining, err := l.Remaining(ctx, "test_negative", RuleMessage)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected 0 remaining, got %d", remaining)
	}
}

func TestReset(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < RuleMessage.Limit+1; i++ {
		l.Allow(ctx, "test_reset", RuleMessage)
	}
	if ok, _ := l.Allow(ctx, "test_reset", RuleMessage); ok {
		t.Fatal("expected identifier to be limited before reset")
	}

	l.Reset(ctx, "test_reset", RuleMessage, RuleTyping)

	ok, err := l.Allow(ctx, "test_reset", RuleMessage)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !ok {
		t.Error("expected a clean window after Reset()")
	}
}

func TestAllow_FailsOpenWhenRedisDown(t *testing.T) {
	// A client pointed at a closed port errors on every command.
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	l := NewLimiter(client)

	ok, err := l.Allow(context.Background(), "test_down", RuleMessage)
	if err == nil {
		t.Fatal("expected an error from the unreachable Redis")
	}
	if !ok {
		t.Error("expected Allow() to fail open on Redis errors")
	}
}
