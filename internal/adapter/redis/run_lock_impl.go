package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const runLockPrefix = "sync:lock:"

// RunLockImpl provides a concrete implementation for the RunLock interface using Redis.
// SET NX with a TTL gives an expiring advisory lock, so a killed
// invocation cannot block the schedule past the TTL.
type RunLockImpl struct {
	client *redis.Client
}

// NewRunLock creates a new instance of RunLockImpl.
func NewRunLock(client *redis.Client) *RunLockImpl {
	return &RunLockImpl{client: client}
}

func (r *RunLockImpl) key(identity string) string {
	return fmt.Sprintf("%s%s", runLockPrefix, identity)
}

// Acquire takes the lock for the crawl identity. Returns false when
// another invocation already holds it.
func (r *RunLockImpl) Acquire(ctx context.Context, identity string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.key(identity), "1", ttl).Result()
}

// Refresh extends the TTL of a held lock.
func (r *RunLockImpl) Refresh(ctx context.Context, identity string, ttl time.Duration) error {
	return r.client.Expire(ctx, r.key(identity), ttl).Err()
}

// Release frees the lock.
func (r *RunLockImpl) Release(ctx context.Context, identity string) error {
	return r.client.Del(ctx, r.key(identity)).Err()
}
