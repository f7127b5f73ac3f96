// Package dedup records provider webhook event ids so redelivered events are
// acknowledged without being applied twice.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix  = "webhook:event:"
	defaultTTL = 72 * time.Hour
)

// Store claims event ids in Redis.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a Store. A non-positive ttl falls back to 72 hours.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Claim marks provider/eventID as seen. It returns true only for the first
// caller within the TTL window.
func (s *Store) Claim(ctx context.Context, provider, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}

	ok, err := s.rdb.SetNX(ctx, key(provider, eventID), time.Now().Unix(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event: %w", err)
	}
	return ok, nil
}

// Release forgets an event id so a later delivery is processed again.
func (s *Store) Release(ctx context.Context, provider, eventID string) error {
	if eventID == "" {
		return nil
	}
	return s.rdb.Del(ctx, key(provider, eventID)).Err()
}

func key(provider, eventID string) string {
	return keyPrefix + provider + ":" + eventID
}
