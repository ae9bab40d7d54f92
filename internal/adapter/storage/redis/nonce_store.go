package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var errEmptyNonce = errors.New("nonce and scope are required")

// NonceStore remembers webhook nonces per scope with Redis SET NX.
type NonceStore struct {
	client *goredis.Client
}

func NewNonceStore(client *goredis.Client) *NonceStore {
	return &NonceStore{client: client}
}

// CheckAndSet atomically records nonce under scope. It returns true if the
// nonce is new and false if it was already seen within ttl. A non-positive
// ttl is refused because the key would never expire.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	if scope == "" || nonce == "" {
		return false, errEmptyNonce
	}
	if ttl <= 0 {
		return false, fmt.Errorf("redis nonce check: ttl must be positive, got %s", ttl)
	}
	result, err := s.client.SetArgs(ctx, nonceKeys.key(scope, nonce), time.Now().Unix(), goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis nonce check: %w", err)
	}
	return result == "OK", nil
}
