package usecase

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/navicare/facility-sync/internal/entity"
	"github.com/navicare/facility-sync/internal/repository"
	"github.com/navicare/facility-sync/pkg/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

// fakeSource serves deterministic pages, with per-page failures
// injectable. Failures are consumed: after failCount errors the page
// starts succeeding, which models transient outages across invocations.
type fakeSource struct {
	mu         sync.Mutex
	totalPages int
	perPage    int
	failures   map[int]int
	fetched    []int
}

func newFakeSource(totalPages, perPage int) *fakeSource {
	return &fakeSource{totalPages: totalPages, perPage: perPage, failures: make(map[int]int)}
}

func (s *fakeSource) failPage(page, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[page] = times
}

func (s *fakeSource) PageCount(ctx context.Context) (int, error) {
	return s.totalPages, nil
}

func (s *fakeSource) FetchPage(ctx context.Context, page int) (*entity.FacilityPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, page)

	if s.failures[page] > 0 {
		s.failures[page]--
		return nil, fmt.Errorf("page %d: %w: upstream kept returning 503", page, repository.ErrRetriesExhausted)
	}

	result := &entity.FacilityPage{Page: page, TotalPages: s.totalPages, HasMore: page < s.totalPages}
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < s.perPage; i++ {
		sourceID := fmt.Sprintf("facility-%d-%d", page, i)
		result.Facilities = append(result.Facilities, &entity.Facility{
			SourceID:      sourceID,
			Name:          fmt.Sprintf("Facility %d-%d", page, i),
			FacilityType:  entity.FacilityTypeClinic,
			Status:        entity.FacilityStatusActive,
			LastSeenAt:    now,
			LastUpdatedAt: now,
		})
		result.Observations = append(result.Observations, &entity.Observation{
			SourceID:   sourceID,
			ObservedAt: now,
		})
	}
	return result, nil
}

func (s *fakeSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fetched)
}

// fakeBatchRepo stores commits in memory with upsert semantics and
// records which writer path each commit used.
type fakeBatchRepo struct {
	mu            sync.Mutex
	facilities    map[string]*entity.Facility
	observations  []*entity.Observation
	fullCommits   int
	availCommits  int
	failRemaining int
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{facilities: make(map[string]*entity.Facility)}
}

func (r *fakeBatchRepo) CommitFull(ctx context.Context, facilities []*entity.Facility, observations []*entity.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRemaining > 0 {
		r.failRemaining--
		return fmt.Errorf("storage unavailable")
	}
	r.fullCommits++
	for _, f := range facilities {
		copied := *f
		r.facilities[f.SourceID] = &copied
	}
	for _, o := range observations {
		copied := *o
		r.observations = append(r.observations, &copied)
	}
	return nil
}

func (r *fakeBatchRepo) CommitAvailability(ctx context.Context, facilities []*entity.Facility, observations []*entity.Observation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRemaining > 0 {
		r.failRemaining--
		return fmt.Errorf("storage unavailable")
	}
	r.availCommits++
	for _, f := range facilities {
		if existing, ok := r.facilities[f.SourceID]; ok {
			existing.Availability = f.Availability
			existing.LastUpdatedAt = f.LastUpdatedAt
		}
	}
	for _, o := range observations {
		copied := *o
		r.observations = append(r.observations, &copied)
	}
	return nil
}

func (r *fakeBatchRepo) snapshot() map[string]entity.Facility {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]entity.Facility, len(r.facilities))
	for id, f := range r.facilities {
		out[id] = *f
	}
	return out
}

// fakeStateRepo implements the optimistic version check.
type fakeStateRepo struct {
	mu     sync.Mutex
	states map[string]*entity.CrawlState
}

func newFakeStateRepo() *fakeStateRepo {
	return &fakeStateRepo{states: make(map[string]*entity.CrawlState)}
}

func (r *fakeStateRepo) Load(ctx context.Context, mode entity.CrawlMode, segment int) (*entity.CrawlState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.states[entity.CrawlIdentity(mode, segment)]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (r *fakeStateRepo) Create(ctx context.Context, state *entity.CrawlState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *state
	copied.Version = 1
	r.states[state.Identity()] = &copied
	state.Version = 1
	return nil
}

func (r *fakeStateRepo) Update(ctx context.Context, state *entity.CrawlState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.states[state.Identity()]
	if !ok || stored.Version != state.Version {
		return repository.ErrStaleCrawlState
	}
	copied := *state
	copied.Version = stored.Version + 1
	copied.UpdatedAt = time.Now().UTC()
	r.states[state.Identity()] = &copied
	state.Version = copied.Version
	return nil
}

func (r *fakeStateRepo) ListByMode(ctx context.Context, mode entity.CrawlMode) ([]*entity.CrawlState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.CrawlState
	for _, state := range r.states {
		if state.Mode == mode {
			copied := *state
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeStateRepo) get(mode entity.CrawlMode, segment int) *entity.CrawlState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[entity.CrawlIdentity(mode, segment)]
}

// fakeFailedPages records terminal page failures in memory.
type fakeFailedPages struct {
	mu   sync.Mutex
	rows map[string]*entity.FailedPage
}

func newFakeFailedPages() *fakeFailedPages {
	return &fakeFailedPages{rows: make(map[string]*entity.FailedPage)}
}

func failedPageKey(mode entity.CrawlMode, segment, page int) string {
	return fmt.Sprintf("%s:%d:%d", mode, segment, page)
}

func (r *fakeFailedPages) SaveOrUpdate(ctx context.Context, failed *entity.FailedPage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := failedPageKey(failed.Mode, failed.Segment, failed.Page)
	if existing, ok := r.rows[key]; ok {
		existing.AttemptCount++
		existing.FailureReason = failed.FailureReason
		existing.LastAttemptAt = failed.LastAttemptAt
		return nil
	}
	copied := *failed
	copied.AttemptCount = 1
	r.rows[key] = &copied
	return nil
}

func (r *fakeFailedPages) Delete(ctx context.Context, mode entity.CrawlMode, segment, page int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, failedPageKey(mode, segment, page))
	return nil
}

func (r *fakeFailedPages) ListByIdentity(ctx context.Context, mode entity.CrawlMode, segment int) ([]*entity.FailedPage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FailedPage
	for _, row := range r.rows {
		if row.Mode == mode && row.Segment == segment {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeFailedPages) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// fakeLock grants the lock unless a holder is registered.
type fakeLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: make(map[string]bool)}
}

func (l *fakeLock) Acquire(ctx context.Context, identity string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[identity] {
		return false, nil
	}
	l.held[identity] = true
	return true, nil
}

func (l *fakeLock) Refresh(ctx context.Context, identity string, ttl time.Duration) error {
	return nil
}

func (l *fakeLock) Release(ctx context.Context, identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, identity)
	return nil
}
