package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/navicare/facility-sync/internal/entity"
	"github.com/navicare/facility-sync/internal/repository"
	"github.com/navicare/facility-sync/pkg/metrics"
)

// ErrCrawlIncomplete means reconciliation was requested before every
// segment of the full crawl reported complete. Retiring facilities at
// that point would drop records the crawl simply has not visited yet.
var ErrCrawlIncomplete = errors.New("full crawl not complete across all segments")

// ReconcileResult reports what a reconciliation pass changed.
type ReconcileResult struct {
	FacilitiesRetired  int64
	ObservationsPruned int64
	CrawlStartedAt     time.Time
}

// ReconcileConfig carries the retirement and retention policy.
type ReconcileConfig struct {
	// SegmentCount is how many segments a segmented full crawl spans.
	SegmentCount int
	// HardDelete removes retired facilities instead of marking them
	// inactive.
	HardDelete bool
	// Retention bounds how long observations are kept.
	Retention time.Duration
}

// Reconciler retires facilities absent from a completed full crawl and
// prunes old observations. It never runs for availability refreshes.
type Reconciler interface {
	// Run reconciles after an unsegmented full crawl, gated on the
	// full-mode checkpoint being complete.
	Run(ctx context.Context) (*ReconcileResult, error)
	// RunSegmented reconciles after a segmented crawl, gated on every
	// configured segment reporting complete.
	RunSegmented(ctx context.Context) (*ReconcileResult, error)
}

type reconcileUseCase struct {
	facilities   repository.FacilityRepository
	observations repository.ObservationRepository
	states       repository.CrawlStateRepository
	cfg          ReconcileConfig
}

// NewReconcileUseCase creates a new instance of the reconciliation use case.
func NewReconcileUseCase(
	facilities repository.FacilityRepository,
	observations repository.ObservationRepository,
	states repository.CrawlStateRepository,
	cfg ReconcileConfig,
) Reconciler {
	return &reconcileUseCase{
		facilities:   facilities,
		observations: observations,
		states:       states,
		cfg:          cfg,
	}
}

func (uc *reconcileUseCase) Run(ctx context.Context) (*ReconcileResult, error) {
	state, err := uc.states.Load(ctx, entity.ModeFull, 0)
	if err != nil {
		return nil, fmt.Errorf("load full crawl state: %w", err)
	}
	if state == nil || state.Status != entity.CrawlStatusComplete {
		return nil, fmt.Errorf("full crawl: %w", ErrCrawlIncomplete)
	}
	return uc.reconcile(ctx, state.StartedAt)
}

func (uc *reconcileUseCase) RunSegmented(ctx context.Context) (*ReconcileResult, error) {
	states, err := uc.states.ListByMode(ctx, entity.ModeSegment)
	if err != nil {
		return nil, fmt.Errorf("list segment states: %w", err)
	}
	if len(states) < uc.cfg.SegmentCount {
		return nil, fmt.Errorf("only %d of %d segments recorded: %w",
			len(states), uc.cfg.SegmentCount, ErrCrawlIncomplete)
	}

	// The logical crawl started when its earliest segment did; a
	// facility is unseen only if no segment has touched it since then.
	var crawlStart time.Time
	for _, state := range states {
		if state.Status != entity.CrawlStatusComplete {
			return nil, fmt.Errorf("segment %d is %s: %w", state.Segment, state.Status, ErrCrawlIncomplete)
		}
		if crawlStart.IsZero() || state.StartedAt.Before(crawlStart) {
			crawlStart = state.StartedAt
		}
	}
	return uc.reconcile(ctx, crawlStart)
}

func (uc *reconcileUseCase) reconcile(ctx context.Context, crawlStart time.Time) (*ReconcileResult, error) {
	retired, err := uc.facilities.RetireUnseen(ctx, crawlStart, uc.cfg.HardDelete)
	if err != nil {
		return nil, fmt.Errorf("retire unseen facilities: %w", err)
	}
	metrics.FacilitiesRetired.Add(float64(retired))

	cutoff := time.Now().UTC().Add(-uc.cfg.Retention)
	pruned, err := uc.observations.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("prune observations: %w", err)
	}
	metrics.ObservationsPruned.Add(float64(pruned))

	slog.Info("Reconciliation complete",
		"crawl_started_at", crawlStart, "retired", retired, "pruned", pruned, "hard_delete", uc.cfg.HardDelete)
	return &ReconcileResult{
		FacilitiesRetired:  retired,
		ObservationsPruned: pruned,
		CrawlStartedAt:     crawlStart,
	}, nil
}
