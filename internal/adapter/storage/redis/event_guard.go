package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// EventGuard implements ports.EventGuard with SET NX. It is the first line of
// webhook deduplication; the conditional payment update is the second.
type EventGuard struct {
	client goredis.Cmdable
	prefix string
}

func NewEventGuard(client goredis.Cmdable) *EventGuard {
	return &EventGuard{
		client: client,
		prefix: "rb:event:",
	}
}

// Claim returns true only for the first caller within ttl.
func (g *EventGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.prefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis event claim: %w", err)
	}
	return ok, nil
}

func (g *EventGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis event release: %w", err)
	}
	return nil
}
