package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/navicare/facility-sync/internal/entity"
	"github.com/navicare/facility-sync/internal/repository"
)

const statusCacheKey = "status"

// StatusReport is the snapshot served by the status endpoint.
type StatusReport struct {
	CrawlStates         []*entity.CrawlState          `json:"crawl_states"`
	FacilitiesByType    map[entity.FacilityType]int64 `json:"facilities_by_type"`
	ObservationsLast24h int64                         `json:"observations_last_24h"`
	GeneratedAt         time.Time                     `json:"generated_at"`
}

// StatusProvider builds the status snapshot, caching it briefly so
// dashboard polling does not hammer PostgreSQL.
type StatusProvider interface {
	Status(ctx context.Context) (*StatusReport, error)
}

type statusUseCase struct {
	states       repository.CrawlStateRepository
	facilities   repository.FacilityRepository
	observations repository.ObservationRepository
	cache        repository.StatsCache
	cacheTTL     time.Duration
}

// NewStatusUseCase creates a new instance of the status use case.
func NewStatusUseCase(
	states repository.CrawlStateRepository,
	facilities repository.FacilityRepository,
	observations repository.ObservationRepository,
	cache repository.StatsCache,
	cacheTTL time.Duration,
) StatusProvider {
	return &statusUseCase{
		states:       states,
		facilities:   facilities,
		observations: observations,
		cache:        cache,
		cacheTTL:     cacheTTL,
	}
}

func (uc *statusUseCase) Status(ctx context.Context) (*StatusReport, error) {
	if cached, err := uc.cache.Get(ctx, statusCacheKey); err == nil {
		var report StatusReport
		if err := json.Unmarshal(cached, &report); err == nil {
			return &report, nil
		}
	} else if !errors.Is(err, repository.ErrCacheMiss) {
		slog.Warn("Status cache read failed", "error", err)
	}

	report := &StatusReport{
		FacilitiesByType: make(map[entity.FacilityType]int64),
		GeneratedAt:      time.Now().UTC(),
	}

	for _, mode := range []entity.CrawlMode{entity.ModeFull, entity.ModeAvailability, entity.ModeSegment} {
		states, err := uc.states.ListByMode(ctx, mode)
		if err != nil {
			return nil, err
		}
		report.CrawlStates = append(report.CrawlStates, states...)
	}

	counts, err := uc.facilities.CountByType(ctx)
	if err != nil {
		return nil, err
	}
	report.FacilitiesByType = counts

	since := time.Now().UTC().Add(-24 * time.Hour)
	if report.ObservationsLast24h, err = uc.observations.CountSince(ctx, since); err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(report); err == nil {
		if err := uc.cache.Set(ctx, statusCacheKey, encoded, uc.cacheTTL); err != nil {
			slog.Warn("Status cache write failed", "error", err)
		}
	}
	return report, nil
}
