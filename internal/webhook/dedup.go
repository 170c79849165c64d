package webhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper filters webhook redeliveries of the same provider message id.
type Deduper interface {
	// Seen marks the id and reports whether it was already marked.
	Seen(ctx context.Context, messageID string) (bool, error)
}

// RedisDeduper implements Deduper with SETNX plus a TTL, so a redelivered
// event inside the window is dropped and the keyspace stays bounded.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a Redis-backed deduper.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (d *RedisDeduper) Seen(ctx context.Context, messageID string) (bool, error) {
	stored, err := d.client.SetNX(ctx, "webhook:msg:"+messageID, 1, d.ttl).Result()
	if err != nil {
		return false, err
	}
	return !stored, nil
}

// NoopDeduper accepts every message. Used when Redis is not configured.
type NoopDeduper struct{}

func (NoopDeduper) Seen(ctx context.Context, messageID string) (bool, error) {
	return false, nil
}
