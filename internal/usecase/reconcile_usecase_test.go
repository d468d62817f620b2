package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navicare/facility-sync/internal/entity"
)

type fakeFacilityRepo struct {
	mu          sync.Mutex
	facilities  map[string]*entity.Facility
	enrichments map[string]*entity.WebsiteEnrichment
}

func newFakeFacilityRepo(facilities ...*entity.Facility) *fakeFacilityRepo {
	r := &fakeFacilityRepo{
		facilities:  make(map[string]*entity.Facility),
		enrichments: make(map[string]*entity.WebsiteEnrichment),
	}
	for _, f := range facilities {
		copied := *f
		r.facilities[f.SourceID] = &copied
	}
	return r
}

func (r *fakeFacilityRepo) RetireUnseen(ctx context.Context, observedSince time.Time, hard bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var retired int64
	for id, f := range r.facilities {
		if f.Status != entity.FacilityStatusActive || !f.LastSeenAt.Before(observedSince) {
			continue
		}
		if hard {
			delete(r.facilities, id)
		} else {
			f.Status = entity.FacilityStatusInactive
		}
		retired++
	}
	return retired, nil
}

func (r *fakeFacilityRepo) ListForEnrichment(ctx context.Context, staleBefore time.Time, limit int) ([]*entity.Facility, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Facility
	for _, f := range r.facilities {
		if f.Status == entity.FacilityStatusActive && f.Website != "" && f.LastUpdatedAt.Before(staleBefore) {
			copied := *f
			out = append(out, &copied)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeFacilityRepo) SaveEnrichment(ctx context.Context, enrichment *entity.WebsiteEnrichment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *enrichment
	r.enrichments[enrichment.SourceID] = &copied
	return nil
}

func (r *fakeFacilityRepo) CountByType(ctx context.Context) (map[entity.FacilityType]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[entity.FacilityType]int64)
	for _, f := range r.facilities {
		counts[f.FacilityType]++
	}
	return counts, nil
}

func (r *fakeFacilityRepo) status(sourceID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.facilities[sourceID]
	if !ok {
		return "deleted"
	}
	return f.Status
}

type fakeObservationRepo struct {
	mu           sync.Mutex
	observations []*entity.Observation
}

func (r *fakeObservationRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*entity.Observation
	var pruned int64
	for _, o := range r.observations {
		if o.ObservedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, o)
	}
	r.observations = kept
	return pruned, nil
}

func (r *fakeObservationRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, o := range r.observations {
		if !o.ObservedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func clinic(sourceID string, lastSeen time.Time) *entity.Facility {
	return &entity.Facility{
		SourceID:     sourceID,
		Name:         sourceID,
		FacilityType: entity.FacilityTypeClinic,
		Status:       entity.FacilityStatusActive,
		LastSeenAt:   lastSeen,
	}
}

func completeState(mode entity.CrawlMode, segment int, startedAt time.Time) *entity.CrawlState {
	now := time.Now().UTC()
	return &entity.CrawlState{
		Mode:        mode,
		Segment:     segment,
		RunID:       uuid.New(),
		Status:      entity.CrawlStatusComplete,
		StartedAt:   startedAt,
		CompletedAt: &now,
		Version:     1,
	}
}

func TestReconcile_RetiresUnseenFacilities(t *testing.T) {
	crawlStart := time.Now().UTC().Add(-time.Hour)
	seenAt := crawlStart.Add(30 * time.Minute)
	staleAt := crawlStart.Add(-24 * time.Hour)

	// A and C were observed by this crawl; B was not.
	facilities := newFakeFacilityRepo(
		clinic("clinic-a", seenAt),
		clinic("clinic-b", staleAt),
		clinic("clinic-c", seenAt),
	)
	observations := &fakeObservationRepo{}
	states := newFakeStateRepo()
	require.NoError(t, states.Create(t.Context(), completeState(entity.ModeFull, 0, crawlStart)))

	reconciler := NewReconcileUseCase(facilities, observations, states, ReconcileConfig{
		SegmentCount: 1,
		Retention:    7 * 24 * time.Hour,
	})

	result, err := reconciler.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.FacilitiesRetired)
	assert.Equal(t, entity.FacilityStatusInactive, facilities.status("clinic-b"))
	assert.Equal(t, entity.FacilityStatusActive, facilities.status("clinic-a"))
	assert.Equal(t, entity.FacilityStatusActive, facilities.status("clinic-c"))
}

func TestReconcile_HardDelete(t *testing.T) {
	crawlStart := time.Now().UTC().Add(-time.Hour)
	facilities := newFakeFacilityRepo(clinic("gone", crawlStart.Add(-48*time.Hour)))
	states := newFakeStateRepo()
	require.NoError(t, states.Create(t.Context(), completeState(entity.ModeFull, 0, crawlStart)))

	reconciler := NewReconcileUseCase(facilities, &fakeObservationRepo{}, states, ReconcileConfig{
		SegmentCount: 1,
		HardDelete:   true,
		Retention:    7 * 24 * time.Hour,
	})

	result, err := reconciler.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.FacilitiesRetired)
	assert.Equal(t, "deleted", facilities.status("gone"))
}

func TestReconcile_GatedOnFullCrawlCompletion(t *testing.T) {
	facilities := newFakeFacilityRepo(clinic("clinic-a", time.Now().Add(-48*time.Hour)))
	states := newFakeStateRepo()

	reconciler := NewReconcileUseCase(facilities, &fakeObservationRepo{}, states, ReconcileConfig{
		SegmentCount: 1,
		Retention:    7 * 24 * time.Hour,
	})

	// No crawl recorded at all.
	_, err := reconciler.Run(t.Context())
	require.ErrorIs(t, err, ErrCrawlIncomplete)

	// A crawl that is still in progress.
	state := completeState(entity.ModeFull, 0, time.Now().UTC())
	state.Status = entity.CrawlStatusInProgress
	require.NoError(t, states.Create(t.Context(), state))
	_, err = reconciler.Run(t.Context())
	require.ErrorIs(t, err, ErrCrawlIncomplete)

	assert.Equal(t, entity.FacilityStatusActive, facilities.status("clinic-a"),
		"nothing may be retired before the crawl completes")
}

func TestReconcileSegmented_RequiresEverySegment(t *testing.T) {
	crawlStart := time.Now().UTC().Add(-3 * time.Hour)
	facilities := newFakeFacilityRepo(clinic("stale", crawlStart.Add(-24*time.Hour)))
	states := newFakeStateRepo()

	cfg := ReconcileConfig{SegmentCount: 3, Retention: 7 * 24 * time.Hour}
	reconciler := NewReconcileUseCase(facilities, &fakeObservationRepo{}, states, cfg)

	// Two of three segments complete.
	require.NoError(t, states.Create(t.Context(), completeState(entity.ModeSegment, 0, crawlStart)))
	require.NoError(t, states.Create(t.Context(), completeState(entity.ModeSegment, 1, crawlStart.Add(time.Hour))))
	_, err := reconciler.RunSegmented(t.Context())
	require.ErrorIs(t, err, ErrCrawlIncomplete)

	// Third segment completes; reconciliation uses the earliest start.
	require.NoError(t, states.Create(t.Context(), completeState(entity.ModeSegment, 2, crawlStart.Add(2*time.Hour))))
	result, err := reconciler.RunSegmented(t.Context())
	require.NoError(t, err)
	assert.Equal(t, crawlStart, result.CrawlStartedAt)
	assert.Equal(t, int64(1), result.FacilitiesRetired)
}

func TestReconcile_PrunesOldObservations(t *testing.T) {
	crawlStart := time.Now().UTC().Add(-time.Hour)
	observations := &fakeObservationRepo{observations: []*entity.Observation{
		{SourceID: "a", ObservedAt: time.Now().UTC().Add(-10 * 24 * time.Hour)},
		{SourceID: "a", ObservedAt: time.Now().UTC().Add(-time.Hour)},
	}}
	states := newFakeStateRepo()
	require.NoError(t, states.Create(t.Context(), completeState(entity.ModeFull, 0, crawlStart)))

	reconciler := NewReconcileUseCase(newFakeFacilityRepo(), observations, states, ReconcileConfig{
		SegmentCount: 1,
		Retention:    7 * 24 * time.Hour,
	})

	result, err := reconciler.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ObservationsPruned)

	remaining, err := observations.CountSince(t.Context(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), remaining)
}
