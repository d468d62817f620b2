package repository

import (
	"context"
	"time"
)

// RunLock serializes invocations per crawl identity. Invocations are
// externally scheduled and not expected to overlap; the lock is the
// guard against the case where they do.
type RunLock interface {
	// Acquire takes the lock for the identity, returning false when
	// another invocation already holds it. The lock expires after ttl
	// so a killed process cannot wedge the schedule.
	Acquire(ctx context.Context, identity string, ttl time.Duration) (bool, error)
	// Refresh extends the TTL of a held lock so a long run does not
	// lose it mid-flight.
	Refresh(ctx context.Context, identity string, ttl time.Duration) error
	// Release frees the lock.
	Release(ctx context.Context, identity string) error
}
