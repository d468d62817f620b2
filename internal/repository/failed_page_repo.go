package repository

import (
	"context"

	"github.com/navicare/facility-sync/internal/entity"
)

// FailedPageRepository records pages whose retries were exhausted.
type FailedPageRepository interface {
	// SaveOrUpdate creates or refreshes the record for a failed page,
	// incrementing its attempt count on conflict.
	SaveOrUpdate(ctx context.Context, failed *entity.FailedPage) error
	// Delete removes the record after the page is eventually committed.
	Delete(ctx context.Context, mode entity.CrawlMode, segment, page int) error
	// ListByIdentity returns the outstanding failed pages for one
	// (mode, segment) identity, ordered by page.
	ListByIdentity(ctx context.Context, mode entity.CrawlMode, segment int) ([]*entity.FailedPage, error)
}
