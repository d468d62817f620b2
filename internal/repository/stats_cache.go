package repository

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when no value is cached for the key.
var ErrCacheMiss = errors.New("cache miss")

// StatsCache holds precomputed status snapshots so the status endpoint
// does not hit PostgreSQL on every poll.
type StatsCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
