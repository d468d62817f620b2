package repository

import (
	"context"
	"time"
)

// ObservationRepository manages observation retention and reporting.
// Inserts go through the BatchRepository so they commit atomically with
// the facilities they belong to.
type ObservationRepository interface {
	// PruneOlderThan deletes observations observed before cutoff and
	// returns how many were removed. Only the retention cleanup tied to
	// full crawls calls this.
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	// CountSince reports how many observations were recorded at or
	// after since.
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
