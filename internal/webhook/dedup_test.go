package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDeduper(t *testing.T) (*RedisDeduper, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDeduper(client, time.Minute), mr
}

func TestRedisDeduperMarksAndDetects(t *testing.T) {
	dedup, _ := newTestDeduper(t)
	ctx := context.Background()

	seen, err := dedup.Seen(ctx, "MSG1")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatalf("first delivery must not be seen")
	}

	seen, err = dedup.Seen(ctx, "MSG1")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if !seen {
		t.Fatalf("redelivery must be detected")
	}

	seen, err = dedup.Seen(ctx, "MSG2")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatalf("a different id must not collide")
	}
}

func TestRedisDeduperExpires(t *testing.T) {
	dedup, mr := newTestDeduper(t)
	ctx := context.Background()

	if _, err := dedup.Seen(ctx, "MSG1"); err != nil {
		t.Fatalf("Seen: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	seen, err := dedup.Seen(ctx, "MSG1")
	if err != nil {
		t.Fatalf("Seen: %v", err)
	}
	if seen {
		t.Fatalf("id must be forgotten after the ttl")
	}
}
