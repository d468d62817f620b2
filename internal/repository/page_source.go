package repository

import (
	"context"
	"errors"

	"github.com/navicare/facility-sync/internal/entity"
)

var (
	// ErrMalformedPage indicates a response body that could not be
	// decoded. Not retriable.
	ErrMalformedPage = errors.New("malformed page response")
	// ErrPageNotFound indicates the upstream returned 404 for a page
	// index, typically a request past the end of the data set.
	ErrPageNotFound = errors.New("page not found")
	// ErrRetriesExhausted wraps the last transient error once the
	// attempt budget for a page is spent.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// PageSource retrieves one upstream page and normalizes its records.
// Implementations retry transient failures (network errors, 5xx, rate
// limiting) internally with backoff; any error returned from FetchPage
// is terminal for that page. A PageSource never writes to storage.
type PageSource interface {
	// PageCount reports the current total page count from the upstream
	// pagination metadata. The data set grows over time, so this is
	// queried at the start of every run rather than configured.
	PageCount(ctx context.Context) (int, error)
	// FetchPage retrieves and normalizes page `page` (1-based).
	FetchPage(ctx context.Context, page int) (*entity.FacilityPage, error)
}
