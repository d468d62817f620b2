package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navicare/facility-sync/internal/repository"
)

type fakeWebsiteRepo struct {
	mu    sync.Mutex
	sites map[string]*repository.RenderedSite
	fail  map[string]error
}

func (r *fakeWebsiteRepo) Render(ctx context.Context, url string) (*repository.RenderedSite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err, ok := r.fail[url]; ok {
		return nil, err
	}
	site, ok := r.sites[url]
	if !ok {
		return nil, repository.ErrNavigationFailed
	}
	return site, nil
}

func testEnrichConfig() EnrichConfig {
	return EnrichConfig{
		Limit:          10,
		StaleAfter:     time.Hour,
		MaxConcurrency: 2,
		RequestDelay:   0,
	}
}

func TestEnrich_DetectsServicesAndBookingLink(t *testing.T) {
	stale := time.Now().UTC().Add(-2 * time.Hour)
	facility := clinic("harbour-medical", stale)
	facility.Website = "https://harbourmedical.ca"
	facility.LastUpdatedAt = stale

	facilities := newFakeFacilityRepo(facility)
	websites := &fakeWebsiteRepo{sites: map[string]*repository.RenderedSite{
		"https://harbourmedical.ca": {
			URL:   "https://harbourmedical.ca",
			Title: "Harbour Medical | Walk-in Clinic",
			BodyText: "We are a walk-in clinic accepting new patients. " +
				"Virtual care visits and flu shot appointments available. " +
				"Book online at https://harbourmedical.ca/book-appointment today.",
		},
	}}

	enricher := NewEnrichUseCase(facilities, websites, testEnrichConfig())
	result, err := enricher.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Failed)

	enrichment := facilities.enrichments["harbour-medical"]
	require.NotNil(t, enrichment)
	assert.Equal(t, "Harbour Medical | Walk-in Clinic", enrichment.PageTitle)
	assert.Equal(t, "https://harbourmedical.ca/book-appointment", enrichment.BookingLink)
	assert.Contains(t, enrichment.DetectedLabels, "walk-in")
	assert.Contains(t, enrichment.DetectedLabels, "telehealth")
	assert.Contains(t, enrichment.DetectedLabels, "flu-shot")
	assert.Contains(t, enrichment.DetectedLabels, "accepting-patients")
}

func TestEnrich_SiteFailureDoesNotAbortPass(t *testing.T) {
	stale := time.Now().UTC().Add(-2 * time.Hour)
	broken := clinic("broken-site", stale)
	broken.Website = "https://broken.example"
	broken.LastUpdatedAt = stale
	healthy := clinic("healthy-site", stale)
	healthy.Website = "https://healthy.example"
	healthy.LastUpdatedAt = stale

	facilities := newFakeFacilityRepo(broken, healthy)
	websites := &fakeWebsiteRepo{
		sites: map[string]*repository.RenderedSite{
			"https://healthy.example": {Title: "Healthy Clinic", BodyText: "physiotherapy services"},
		},
		fail: map[string]error{
			"https://broken.example": repository.ErrRenderTimeout,
		},
	}

	enricher := NewEnrichUseCase(facilities, websites, testEnrichConfig())
	result, err := enricher.Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Failed)
	assert.NotNil(t, facilities.enrichments["healthy-site"])
	assert.Nil(t, facilities.enrichments["broken-site"])
}

func TestEnrich_SkipsFreshAndWebsitelessFacilities(t *testing.T) {
	now := time.Now().UTC()
	fresh := clinic("fresh", now)
	fresh.Website = "https://fresh.example"
	fresh.LastUpdatedAt = now
	noSite := clinic("no-site", now.Add(-5*time.Hour))
	noSite.LastUpdatedAt = now.Add(-5 * time.Hour)

	facilities := newFakeFacilityRepo(fresh, noSite)
	enricher := NewEnrichUseCase(facilities, &fakeWebsiteRepo{}, testEnrichConfig())

	result, err := enricher.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 0, result.Failed)
}

func TestDetectServiceLabels_Deduplicates(t *testing.T) {
	labels := detectServiceLabels("Flu shot and vaccination and immunization records. Walk-in welcome.")
	assert.Equal(t, []string{"walk-in", "flu-shot", "immunization"}, labels)
}
