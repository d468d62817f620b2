package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CrawlMode selects which fields a run refreshes and whether
// reconciliation may follow it.
type CrawlMode string

const (
	// ModeFull refreshes every facility field and is eligible for
	// reconciliation once all segments report complete.
	ModeFull CrawlMode = "full"
	// ModeAvailability updates only the availability snapshot and
	// last_updated_at. It never reconciles.
	ModeAvailability CrawlMode = "availability"
	// ModeSegment is a full crawl restricted to one fixed-size slice of
	// the page space, processed by one scheduled invocation.
	ModeSegment CrawlMode = "segment"
)

// Crawl statuses persisted on CrawlState rows.
const (
	CrawlStatusInProgress = "in_progress"
	CrawlStatusComplete   = "complete"
	CrawlStatusFailed     = "failed"
)

// CrawlState mirrors the `crawl_state` PostgreSQL table schema, keyed by
// (mode, segment). LastCompletedPage is the prefix watermark: every page
// up to and including it has been fetched and committed, so a resumed
// run starts at LastCompletedPage+1. Version guards concurrent
// invocations from clobbering each other's watermark.
type CrawlState struct {
	Mode              CrawlMode
	Segment           int
	RunID             uuid.UUID
	TotalPages        int
	LastCompletedPage int
	Status            string
	StartedAt         time.Time
	CompletedAt       *time.Time
	UpdatedAt         time.Time
	Version           int
}

// Identity returns the serialization key for this state's run lock.
func (s *CrawlState) Identity() string {
	return CrawlIdentity(s.Mode, s.Segment)
}

// CrawlIdentity builds the (mode, segment) key used for run locks and
// checkpoint lookups.
func CrawlIdentity(mode CrawlMode, segment int) string {
	return fmt.Sprintf("%s:%d", mode, segment)
}
