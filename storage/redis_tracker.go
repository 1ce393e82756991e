package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const cooldownKeyPrefix = "scrape:cooldown:"

// RedisCooldownTracker shares the scrape cooldown across processes
type RedisCooldownTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCooldownTracker connects to addr and verifies the connection
func NewRedisCooldownTracker(ctx context.Context, addr string, ttl time.Duration) (*RedisCooldownTracker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return &RedisCooldownTracker{client: client, ttl: ttl}, nil
}

// Claim sets the cooldown key if absent. It returns false while the key exists.
func (t *RedisCooldownTracker) Claim(ctx context.Context, agencyURL string) (bool, error) {
	key := cooldownKeyPrefix + strings.TrimRight(strings.ToLower(strings.TrimSpace(agencyURL)), "/")
	ok, err := t.client.SetNX(ctx, key, time.Now().Unix(), t.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cooldown claim for %s: %w", agencyURL, err)
	}
	return ok, nil
}

// Close closes the redis client
func (t *RedisCooldownTracker) Close() error {
	return t.client.Close()
}
