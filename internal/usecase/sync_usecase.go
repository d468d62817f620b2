package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/navicare/facility-sync/internal/entity"
	"github.com/navicare/facility-sync/internal/repository"
	"github.com/navicare/facility-sync/pkg/metrics"
	"github.com/navicare/facility-sync/pkg/retry"
)

var (
	// ErrAlreadyRunning means another invocation holds the run lock for
	// the same (mode, segment) identity. Nothing was fetched or written.
	ErrAlreadyRunning = errors.New("run already in progress")
	// ErrRunIncomplete means the run ended before committing its whole
	// range. The persisted watermark tells the next invocation where to
	// resume.
	ErrRunIncomplete = errors.New("run ended with an incomplete range")
)

// RunOptions selects what one invocation processes.
type RunOptions struct {
	Mode    entity.CrawlMode
	Segment int
	// StartPage/EndPage override the derived range. StartPage 0 means
	// derive from the page-count metadata (and checkpoint, if any).
	StartPage int
	EndPage   int
	// Checkpoint persists CrawlState so an interrupted run resumes.
	// Explicit-range and single-page runs leave it off.
	Checkpoint bool
}

// EngineConfig carries the externally supplied tuning knobs.
type EngineConfig struct {
	BatchSize      int
	MaxConcurrency int
	RequestDelay   time.Duration
	Retry          retry.Options
	SegmentSize    int
	LockTTL        time.Duration
}

// Syncer drives one synchronization run against the upstream API.
type Syncer interface {
	Run(ctx context.Context, opts RunOptions) (*entity.RunSummary, error)
}

type syncUseCase struct {
	source      repository.PageSource
	batches     repository.BatchRepository
	states      repository.CrawlStateRepository
	failedPages repository.FailedPageRepository
	lock        repository.RunLock
	cfg         EngineConfig
}

// NewSyncUseCase creates a new instance of the sync engine use case.
func NewSyncUseCase(
	source repository.PageSource,
	batches repository.BatchRepository,
	states repository.CrawlStateRepository,
	failedPages repository.FailedPageRepository,
	lock repository.RunLock,
	cfg EngineConfig,
) Syncer {
	return &syncUseCase{
		source:      source,
		batches:     batches,
		states:      states,
		failedPages: failedPages,
		lock:        lock,
		cfg:         cfg,
	}
}

// runStats collects per-run counters shared by the worker pipelines.
type runStats struct {
	pagesProcessed      atomic.Int64
	pagesFailed         atomic.Int64
	facilitiesWritten   atomic.Int64
	observationsWritten atomic.Int64
	recordsSkipped      atomic.Int64
}

// Run processes the page range selected by opts: N concurrent
// fetch+normalize pipelines feeding a shared batch writer, with the
// checkpoint watermark advancing only through the contiguous committed
// prefix. Returns ErrRunIncomplete (with a summary) when any page in
// the range failed terminally.
func (uc *syncUseCase) Run(ctx context.Context, opts RunOptions) (*entity.RunSummary, error) {
	switch opts.Mode {
	case entity.ModeFull, entity.ModeAvailability, entity.ModeSegment:
	default:
		return nil, fmt.Errorf("unknown crawl mode %q", opts.Mode)
	}
	if opts.StartPage < 0 || opts.EndPage < 0 || (opts.StartPage > 0 && opts.EndPage > 0 && opts.EndPage < opts.StartPage) {
		return nil, fmt.Errorf("invalid page range %d-%d", opts.StartPage, opts.EndPage)
	}

	identity := entity.CrawlIdentity(opts.Mode, opts.Segment)
	acquired, err := uc.lock.Acquire(ctx, identity, uc.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock for %s: %w", identity, err)
	}
	if !acquired {
		return nil, fmt.Errorf("%s: %w", identity, ErrAlreadyRunning)
	}
	defer func() {
		if err := uc.lock.Release(context.WithoutCancel(ctx), identity); err != nil {
			slog.Warn("Failed to release run lock", "identity", identity, "error", err)
		}
	}()

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go uc.refreshLock(refreshCtx, identity)

	totalPages, err := uc.source.PageCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover page count: %w", err)
	}

	pageRange := uc.resolveRange(opts, totalPages)
	state, start, err := uc.prepareState(ctx, opts, pageRange, totalPages)
	if err != nil {
		return nil, err
	}

	slog.Info("Starting run",
		"identity", identity, "total_pages", totalPages,
		"range_start", pageRange.Start, "range_end", pageRange.End, "resume_at", start)

	summary := &entity.RunSummary{
		Mode:      opts.Mode,
		Segment:   opts.Segment,
		StartPage: start,
		EndPage:   pageRange.End,
	}

	if start > pageRange.End {
		// Nothing left to process: an empty segment or a range the
		// previous invocation already finished.
		summary.Watermark = start - 1
		summary.Completed = true
		return summary, uc.finishState(ctx, state, summary)
	}

	stats := &runStats{}
	tracker := newPageTracker(start)
	var halted atomic.Bool

	writer := newBatchWriter(uc.batches, opts.Mode, uc.cfg.BatchSize, uc.cfg.Retry,
		func(ctx context.Context, pages []int, facilities, observations int) error {
			for _, page := range pages {
				tracker.MarkCommitted(page)
			}
			watermark := tracker.Watermark()
			metrics.CheckpointWatermark.
				WithLabelValues(string(opts.Mode), strconv.Itoa(opts.Segment)).
				Set(float64(watermark))
			stats.facilitiesWritten.Add(int64(facilities))
			stats.observationsWritten.Add(int64(observations))
			uc.clearFailedPages(ctx, opts, pages)

			if state == nil {
				return nil
			}
			state.LastCompletedPage = watermark
			if err := uc.states.Update(ctx, state); err != nil {
				return fmt.Errorf("persist checkpoint: %w", err)
			}
			return nil
		})

	uc.runPipelines(ctx, opts, writer, stats, &halted, start, pageRange.End)

	if err := writer.Flush(ctx); err != nil {
		halted.Store(true)
		uc.recordCommitFailure(ctx, opts, stats, err)
		if errors.Is(err, repository.ErrStaleCrawlState) {
			return nil, err
		}
	}

	watermark := tracker.Watermark()
	summary.Watermark = watermark
	summary.PagesProcessed = int(stats.pagesProcessed.Load())
	summary.PagesFailed = int(stats.pagesFailed.Load())
	summary.FacilitiesWritten = int(stats.facilitiesWritten.Load())
	summary.ObservationsWritten = int(stats.observationsWritten.Load())
	summary.RecordsSkipped = int(stats.recordsSkipped.Load())
	summary.Completed = !halted.Load() && watermark >= pageRange.End && ctx.Err() == nil

	if err := uc.finishState(ctx, state, summary); err != nil {
		return summary, err
	}
	if !summary.Completed {
		return summary, fmt.Errorf("%w: watermark %d of range %d-%d",
			ErrRunIncomplete, watermark, start, pageRange.End)
	}
	slog.Info("Run complete", "identity", identity,
		"pages", summary.PagesProcessed, "facilities", summary.FacilitiesWritten)
	return summary, nil
}

// resolveRange derives the page range for this invocation: an explicit
// override, the segment's slice of the page space, or the full span.
func (uc *syncUseCase) resolveRange(opts RunOptions, totalPages int) PageRange {
	switch {
	case opts.StartPage > 0:
		end := opts.EndPage
		if end == 0 {
			end = opts.StartPage
		}
		return PageRange{Start: opts.StartPage, End: end}
	case opts.Mode == entity.ModeSegment:
		return PartitionSegment(totalPages, uc.cfg.SegmentSize, opts.Segment)
	default:
		return PageRange{Start: 1, End: totalPages}
	}
}

// prepareState loads or creates the persisted checkpoint and returns
// the page to start from. Without checkpointing it returns the range
// start unchanged.
func (uc *syncUseCase) prepareState(ctx context.Context, opts RunOptions, pageRange PageRange, totalPages int) (*entity.CrawlState, int, error) {
	if !opts.Checkpoint {
		return nil, pageRange.Start, nil
	}

	state, err := uc.states.Load(ctx, opts.Mode, opts.Segment)
	if err != nil {
		return nil, 0, fmt.Errorf("load crawl state: %w", err)
	}

	if state != nil && state.Status != entity.CrawlStatusComplete && state.LastCompletedPage >= pageRange.Start-1 {
		// Unfinished prior run: resume past its watermark.
		start := state.LastCompletedPage + 1
		state.TotalPages = totalPages
		state.Status = entity.CrawlStatusInProgress
		state.CompletedAt = nil
		if err := uc.states.Update(ctx, state); err != nil {
			return nil, 0, fmt.Errorf("resume crawl state: %w", err)
		}
		slog.Info("Resuming interrupted run",
			"identity", state.Identity(), "run_id", state.RunID, "resume_at", start)
		return state, start, nil
	}

	state = &entity.CrawlState{
		Mode:              opts.Mode,
		Segment:           opts.Segment,
		RunID:             uuid.New(),
		TotalPages:        totalPages,
		LastCompletedPage: pageRange.Start - 1,
		Status:            entity.CrawlStatusInProgress,
		StartedAt:         time.Now().UTC(),
	}
	if err := uc.states.Create(ctx, state); err != nil {
		return nil, 0, fmt.Errorf("create crawl state: %w", err)
	}
	return state, pageRange.Start, nil
}

// runPipelines fans the page range out to the worker pool. A terminal
// page failure halts intake of new pages while in-flight ones drain.
func (uc *syncUseCase) runPipelines(
	ctx context.Context,
	opts RunOptions,
	writer *batchWriter,
	stats *runStats,
	halted *atomic.Bool,
	start, end int,
) {
	limiter := rate.NewLimiter(rate.Every(uc.cfg.RequestDelay), 1)

	jobs := make(chan int)
	go func() {
		defer close(jobs)
		for page := start; page <= end; page++ {
			if halted.Load() {
				return
			}
			select {
			case jobs <- page:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < uc.cfg.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range jobs {
				if err := uc.processPage(ctx, opts, writer, limiter, stats, page); err != nil {
					halted.Store(true)
				}
			}
		}()
	}
	wg.Wait()
}

func (uc *syncUseCase) processPage(
	ctx context.Context,
	opts RunOptions,
	writer *batchWriter,
	limiter *rate.Limiter,
	stats *runStats,
	page int,
) error {
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	fetched, err := uc.source.FetchPage(ctx, page)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Page failed terminally", "page", page, "error", err)
			uc.recordPageFailure(ctx, opts, page, err)
			stats.pagesFailed.Add(1)
		}
		return err
	}

	stats.pagesProcessed.Add(1)
	stats.recordsSkipped.Add(int64(fetched.Skipped))

	if err := writer.Add(ctx, fetched); err != nil {
		uc.recordCommitFailure(ctx, opts, stats, err)
		return err
	}
	return nil
}

// finishState writes the run's terminal status to the checkpoint row.
func (uc *syncUseCase) finishState(ctx context.Context, state *entity.CrawlState, summary *entity.RunSummary) error {
	if state == nil {
		return nil
	}
	state.LastCompletedPage = summary.Watermark
	if summary.Completed {
		now := time.Now().UTC()
		state.Status = entity.CrawlStatusComplete
		state.CompletedAt = &now
	} else if ctx.Err() == nil {
		state.Status = entity.CrawlStatusFailed
	}
	if err := uc.states.Update(context.WithoutCancel(ctx), state); err != nil {
		return fmt.Errorf("finalize crawl state: %w", err)
	}
	return nil
}

// refreshLock keeps the run lock alive while the run is in flight, so
// a crawl longer than the TTL does not lose its lease.
func (uc *syncUseCase) refreshLock(ctx context.Context, identity string) {
	if uc.cfg.LockTTL <= 0 {
		return
	}
	ticker := time.NewTicker(uc.cfg.LockTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := uc.lock.Refresh(ctx, identity, uc.cfg.LockTTL); err != nil {
				slog.Warn("Failed to refresh run lock", "identity", identity, "error", err)
			}
		}
	}
}

func (uc *syncUseCase) recordPageFailure(ctx context.Context, opts RunOptions, page int, cause error) {
	failed := &entity.FailedPage{
		Mode:          opts.Mode,
		Segment:       opts.Segment,
		Page:          page,
		FailureReason: cause.Error(),
		LastAttemptAt: time.Now().UTC(),
	}
	if err := uc.failedPages.SaveOrUpdate(context.WithoutCancel(ctx), failed); err != nil {
		slog.Warn("Failed to record failed page", "page", page, "error", err)
	}
}

// recordCommitFailure records every page a failed batch covered.
func (uc *syncUseCase) recordCommitFailure(ctx context.Context, opts RunOptions, stats *runStats, err error) {
	var ce *commitError
	if !errors.As(err, &ce) {
		return
	}
	slog.Error("Batch commit failed terminally", "pages", ce.pages, "error", ce.err)
	for _, page := range ce.pages {
		uc.recordPageFailure(ctx, opts, page, ce.err)
		stats.pagesFailed.Add(1)
	}
}

func (uc *syncUseCase) clearFailedPages(ctx context.Context, opts RunOptions, pages []int) {
	for _, page := range pages {
		if err := uc.failedPages.Delete(ctx, opts.Mode, opts.Segment, page); err != nil {
			slog.Warn("Failed to clear failed page record", "page", page, "error", err)
		}
	}
}
