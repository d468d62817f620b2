package repository

import (
	"context"
	"errors"

	"github.com/navicare/facility-sync/internal/entity"
)

// ErrStaleCrawlState is returned by Update when the persisted version
// no longer matches, meaning another invocation advanced the same
// (mode, segment) checkpoint concurrently.
var ErrStaleCrawlState = errors.New("crawl state version mismatch")

// CrawlStateRepository persists checkpoint progress keyed by
// (mode, segment).
type CrawlStateRepository interface {
	// Load returns the state for the identity, or nil when no crawl has
	// been recorded for it yet.
	Load(ctx context.Context, mode entity.CrawlMode, segment int) (*entity.CrawlState, error)
	// Create inserts a fresh state row, replacing any previous row for
	// the same identity (a finished crawl's row is superseded by the
	// next logical crawl).
	Create(ctx context.Context, state *entity.CrawlState) error
	// Update persists the state using an optimistic version check and
	// increments state.Version on success.
	Update(ctx context.Context, state *entity.CrawlState) error
	// ListByMode returns the states of every segment recorded for the
	// given mode, ordered by segment.
	ListByMode(ctx context.Context, mode entity.CrawlMode) ([]*entity.CrawlState, error)
}
