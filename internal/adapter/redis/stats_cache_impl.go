package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/navicare/facility-sync/internal/repository"
)

const statsCachePrefix = "sync:stats:"

// StatsCacheImpl provides a concrete implementation for the StatsCache interface using Redis.
type StatsCacheImpl struct {
	client *redis.Client
}

// NewStatsCache creates a new instance of StatsCacheImpl.
func NewStatsCache(client *redis.Client) *StatsCacheImpl {
	return &StatsCacheImpl{client: client}
}

func (r *StatsCacheImpl) key(key string) string {
	return fmt.Sprintf("%s%s", statsCachePrefix, key)
}

// Get returns the cached value for key, or repository.ErrCacheMiss.
func (r *StatsCacheImpl) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrCacheMiss
	}
	return val, err
}

// Set stores value under key with the given expiry.
func (r *StatsCacheImpl) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}
