package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	claimedValue = "claimed"
	sentValue    = "sent"
)

// releaseScript drops a key only while it still holds a claim, so a
// concurrent confirmed send is never erased.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SuppressionStore implements ports.SuppressionStore using Redis SET NX.
type SuppressionStore struct {
	client *goredis.Client
}

// NewSuppressionStore creates a new Redis-backed notification suppression store.
func NewSuppressionStore(client *goredis.Client) *SuppressionStore {
	return &SuppressionStore{client: client}
}

// Claim atomically inserts key if absent.
// Returns true if this caller owns the claim, false if the key already exists.
func (s *SuppressionStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, notifyKeys.key(key), claimedValue, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis suppression claim: %w", err)
	}
	return result == "OK", nil
}

// Confirm records a successful send for the rest of the day.
func (s *SuppressionStore) Confirm(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.client.Set(ctx, notifyKeys.key(key), sentValue, ttl).Err(); err != nil {
		return fmt.Errorf("redis suppression confirm: %w", err)
	}
	return nil
}

// Release drops an unconfirmed claim so a later attempt may send.
func (s *SuppressionStore) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{notifyKeys.key(key)}, claimedValue).Err(); err != nil {
		return fmt.Errorf("redis suppression release: %w", err)
	}
	return nil
}
