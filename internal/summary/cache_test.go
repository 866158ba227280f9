package summary

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// newTestCache connects to a local Redis instance and cleans up test keys.
// Tests skip when Redis is unreachable.
func newTestCache(t *testing.T) *Cache {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() {
		iter := client.Scan(ctx, 0, KeyPrefix+"test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
		client.Close()
	})
	return NewCache(client)
}

func TestSetAndGet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	want := LastMessage{
		MessageID: "msg-1",
		Text:      "hello",
		Type:      "text",
		SenderID:  "user-a",
		Ts:        1700000000,
	}
	if err := cache.Set(ctx, "test_conv1", want); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, err := cache.Get(ctx, "test_conv1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got == nil {
		t.Fatal("expected cached summary, got nil")
	}
	if *got != want {
		t.Errorf("summary mismatch: got %+v, want %+v", *got, want)
	}
}

func TestGet_Miss(t *testing.T) {
	cache := newTestCache(t)

	got, err := cache.Get(context.Background(), "test_missing")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil on miss, got %+v", got)
	}
}

func TestSet_Overwrites(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, "test_conv2", LastMessage{MessageID: "m1", Text: "first", SenderID: "user-a"})
	cache.Set(ctx, "test_conv2", LastMessage{MessageID: "m2", Text: "second", SenderID: "user-b"})

	got, err := cache.Get(ctx, "test_conv2")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.MessageID != "m2" || got.Text != "second" {
		t.Errorf("expected latest summary to win, got %+v", got)
	}
}
