// Package summary caches each conversation's last-message summary in Redis.
// The durable copy lives on the conversations row; this cache is written
// best-effort after each successful send so list screens can render without
// touching Postgres.
package summary

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefix is the Redis key prefix for conversation summary hashes.
	KeyPrefix = "conv:last:"

	// TTL bounds how stale an unused summary entry may get.
	TTL = 24 * time.Hour
)

// LastMessage is the cached summary of a conversation's most recent message.
type LastMessage struct {
	MessageID string
	Text      string
	Type      string
	SenderID  string
	Ts        int64
}

// Cache stores last-message summaries in Redis.
type Cache struct {
	rdb *redis.Client
}

// NewCache creates a Cache backed by the given Redis client.
func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Set writes the summary for a conversation and refreshes its TTL.
func (c *Cache) Set(ctx context.Context, conversationID string, last LastMessage) error {
	key := KeyPrefix + conversationID

	pipe := c.rdb.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"message_id": last.MessageID,
		"text":       last.Text,
		"type":       last.Type,
		"sender_id":  last.SenderID,
		"ts":         last.Ts,
	})
	pipe.Expire(ctx, key, TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Get reads the cached summary for a conversation. Returns nil on a miss.
func (c *Cache) Get(ctx context.Context, conversationID string) (*LastMessage, error) {
	key := KeyPrefix + conversationID

	result, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, nil
	}

	ts, _ := strconv.ParseInt(result["ts"], 10, 64)
	return &LastMessage{
		MessageID: result["message_id"],
		Text:      result["text"],
		Type:      result["type"],
		SenderID:  result["sender_id"],
		Ts:        ts,
	}, nil
}

// Delete drops the cached summary for a conversation.
func (c *Cache) Delete(ctx context.Context, conversationID string) error {
	return c.rdb.Del(ctx, KeyPrefix+conversationID).Err()
}
