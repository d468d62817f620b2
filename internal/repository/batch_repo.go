package repository

import (
	"context"

	"github.com/navicare/facility-sync/internal/entity"
)

// BatchRepository commits one accumulated batch of normalized records.
// Each call is atomic: either every facility and observation in the
// batch is persisted or none are, so the checkpoint watermark always
// reflects actual storage state.
type BatchRepository interface {
	// CommitFull upserts facilities keyed by source identifier,
	// replacing the mutable fields and refreshing last_seen_at, and
	// appends the observations, in a single transaction.
	CommitFull(ctx context.Context, facilities []*entity.Facility, observations []*entity.Observation) error
	// CommitAvailability updates only the availability snapshot and
	// last_updated_at of existing facilities, appending observations.
	// Name, address, services, hours and last_seen_at are untouched.
	CommitAvailability(ctx context.Context, facilities []*entity.Facility, observations []*entity.Observation) error
}
