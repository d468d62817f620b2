package repository

import (
	"context"
	"time"

	"github.com/navicare/facility-sync/internal/entity"
)

// FacilityRepository covers the facility-level operations outside the
// batched write path: reconciliation, enrichment and reporting.
type FacilityRepository interface {
	// RetireUnseen retires every active facility whose last_seen_at is
	// older than observedSince. With hard=false the facility is marked
	// inactive; with hard=true it is deleted. Returns the number of
	// facilities retired.
	RetireUnseen(ctx context.Context, observedSince time.Time, hard bool) (int64, error)
	// ListForEnrichment returns active facilities that have a website
	// and were last updated before staleBefore, oldest first.
	ListForEnrichment(ctx context.Context, staleBefore time.Time, limit int) ([]*entity.Facility, error)
	// SaveEnrichment merges website-derived service labels and booking
	// link into the facility row. Availability and identity fields are
	// never touched here.
	SaveEnrichment(ctx context.Context, enrichment *entity.WebsiteEnrichment) error
	// CountByType reports how many facilities are stored per type.
	CountByType(ctx context.Context) (map[entity.FacilityType]int64, error)
}
