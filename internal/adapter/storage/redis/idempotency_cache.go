package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache keeps replayable API responses in Redis. The caller's key
// (caller, path and Idempotency-Key) is hashed, so stored keys have a fixed
// length and carry no user identifiers.
type IdempotencyCache struct {
	client *goredis.Client
}

func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

func idempotencyRedisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return idempotencyKeys.key(hex.EncodeToString(sum[:]))
}

// Get returns the stored response for key, or nil, nil if there is none.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, idempotencyRedisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}
	return val, nil
}

// Set stores a response under key for ttl. The first stored response wins:
// when two requests with the same key finish concurrently, later retries
// replay what the first caller already received.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("redis idempotency set: ttl must be positive, got %s", ttl)
	}
	err := c.client.SetArgs(ctx, idempotencyRedisKey(key), value, goredis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}
