package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/navicare/facility-sync/internal/entity"
	"github.com/navicare/facility-sync/internal/repository"
	"github.com/navicare/facility-sync/pkg/metrics"
	"github.com/navicare/facility-sync/pkg/retry"
)

// commitError reports which pages were lost when a batch commit
// exhausted its retries. Those pages are not committed and the
// watermark must not advance past them.
type commitError struct {
	pages []int
	err   error
}

func (e *commitError) Error() string {
	return fmt.Sprintf("batch commit failed for pages %v: %v", e.pages, e.err)
}

func (e *commitError) Unwrap() error { return e.err }

// batchWriter accumulates normalized records across completed pages and
// commits them in batches of at least batchSize facilities. A page's
// records are never split across batches, so a successful commit means
// every page in it is fully persisted. onCommit runs after each commit
// with the pages the batch covered; an onCommit error fails the flush.
type batchWriter struct {
	repo      repository.BatchRepository
	mode      entity.CrawlMode
	batchSize int
	retryOpts retry.Options
	onCommit  func(ctx context.Context, pages []int, facilities, observations int) error

	mu           sync.Mutex
	facilities   []*entity.Facility
	observations []*entity.Observation
	pages        []int
}

func newBatchWriter(
	repo repository.BatchRepository,
	mode entity.CrawlMode,
	batchSize int,
	retryOpts retry.Options,
	onCommit func(ctx context.Context, pages []int, facilities, observations int) error,
) *batchWriter {
	return &batchWriter{
		repo:      repo,
		mode:      mode,
		batchSize: batchSize,
		retryOpts: retryOpts,
		onCommit:  onCommit,
	}
}

// Add buffers one fetched page's records, flushing when the buffer has
// reached the batch size. Empty pages are still tracked so they commit.
func (w *batchWriter) Add(ctx context.Context, page *entity.FacilityPage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.facilities = append(w.facilities, page.Facilities...)
	w.observations = append(w.observations, page.Observations...)
	w.pages = append(w.pages, page.Page)

	if len(w.facilities) >= w.batchSize {
		return w.flushLocked(ctx)
	}
	return nil
}

// Flush commits whatever is buffered. Called once after the page range
// is drained.
func (w *batchWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

func (w *batchWriter) flushLocked(ctx context.Context) error {
	if len(w.pages) == 0 {
		return nil
	}
	facilities, observations, pages := w.facilities, w.observations, w.pages
	w.facilities, w.observations, w.pages = nil, nil, nil

	commit := w.repo.CommitFull
	if w.mode == entity.ModeAvailability {
		commit = w.repo.CommitAvailability
	}

	start := time.Now()
	// Storage errors get the same retry budget as fetches.
	err := retry.Do(ctx, w.retryOpts, func(error) bool { return true }, func(ctx context.Context) error {
		return commit(ctx, facilities, observations)
	})
	metrics.BatchCommitDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.BatchCommits.WithLabelValues("failure").Inc()
		return &commitError{pages: pages, err: fmt.Errorf("%w: %w", repository.ErrRetriesExhausted, err)}
	}
	metrics.BatchCommits.WithLabelValues("success").Inc()
	metrics.FacilitiesWritten.WithLabelValues(string(w.mode)).Add(float64(len(facilities)))
	metrics.ObservationsWritten.Add(float64(len(observations)))

	return w.onCommit(ctx, pages, len(facilities), len(observations))
}
