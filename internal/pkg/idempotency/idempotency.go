// internal/pkg/idempotency/idempotency.go
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store guards replayed execution reports. The delivery executor retries on
// network failure, so a key is claimed before the execution is recorded and
// any later claim with the same key is rejected.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Claim attempts to claim key. Returns true when this caller is first.
func (s *Store) Claim(ctx context.Context, key string) (bool, error) {
	if s == nil || s.client == nil {
		// No store configured: treat every call as first.
		return true, nil
	}

	ok, err := s.client.SetNX(ctx, s.redisKey(key), "1", s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return ok, nil
}

// Release frees a claimed key, used when recording fails after the claim.
func (s *Store) Release(ctx context.Context, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Del(ctx, s.redisKey(key)).Err()
}

func (s *Store) redisKey(key string) string {
	return fmt.Sprintf("idempotency:execution:%s", key)
}
