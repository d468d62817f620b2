package entity

import "time"

// Observation mirrors the `facility_observations` PostgreSQL table
// schema. Observations reference a facility by source identifier, are
// append-only, and are pruned only by the retention cleanup that runs
// with full crawls.
type Observation struct {
	ID           int64
	SourceID     string
	ObservedAt   time.Time
	Availability Availability // stored as JSONB
}
