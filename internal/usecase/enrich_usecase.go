package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/navicare/facility-sync/internal/entity"
	"github.com/navicare/facility-sync/internal/repository"
	"github.com/navicare/facility-sync/pkg/metrics"
)

// serviceKeywords maps phrases found on clinic websites to normalized
// service labels. Checked in order; the first phrase for a label wins.
var serviceKeywords = []struct {
	phrase string
	label  string
}{
	{"walk-in", "walk-in"},
	{"walk in clinic", "walk-in"},
	{"telehealth", "telehealth"},
	{"virtual care", "telehealth"},
	{"video visit", "telehealth"},
	{"flu shot", "flu-shot"},
	{"immunization", "immunization"},
	{"vaccination", "immunization"},
	{"travel clinic", "travel-medicine"},
	{"physiotherapy", "physiotherapy"},
	{"mental health", "mental-health"},
	{"counselling", "mental-health"},
	{"prescription", "prescription-refill"},
	{"lab services", "lab-services"},
	{"blood work", "lab-services"},
	{"x-ray", "imaging"},
	{"ultrasound", "imaging"},
	{"new patients", "accepting-patients"},
	{"family practice", "family-medicine"},
	{"family medicine", "family-medicine"},
}

var bookingLinkPattern = regexp.MustCompile(
	`https?://[^\s"'<>]*(?:book|appointment|schedule)[^\s"'<>]*`)

// EnrichResult reports what the enrichment pass processed.
type EnrichResult struct {
	Processed int
	Failed    int
}

// EnrichConfig bounds one enrichment pass.
type EnrichConfig struct {
	// Limit caps how many facilities one pass visits.
	Limit int
	// StaleAfter selects facilities not refreshed within this window.
	StaleAfter time.Duration
	// MaxConcurrency bounds parallel headless renders.
	MaxConcurrency int
	// RequestDelay is the minimum spacing between site loads.
	RequestDelay time.Duration
}

// Enricher renders stored facilities' own websites and extracts
// service labels and a booking link from the rendered content.
type Enricher interface {
	Run(ctx context.Context) (*EnrichResult, error)
}

type enrichUseCase struct {
	facilities repository.FacilityRepository
	websites   repository.WebsiteRepository
	cfg        EnrichConfig
}

// NewEnrichUseCase creates a new instance of the website enrichment use case.
func NewEnrichUseCase(
	facilities repository.FacilityRepository,
	websites repository.WebsiteRepository,
	cfg EnrichConfig,
) Enricher {
	return &enrichUseCase{
		facilities: facilities,
		websites:   websites,
		cfg:        cfg,
	}
}

// Run visits stale facilities that advertise a website, renders each
// site, and saves what it detected. Individual site failures are logged
// and counted; they never abort the pass.
func (uc *enrichUseCase) Run(ctx context.Context) (*EnrichResult, error) {
	staleBefore := time.Now().UTC().Add(-uc.cfg.StaleAfter)
	facilities, err := uc.facilities.ListForEnrichment(ctx, staleBefore, uc.cfg.Limit)
	if err != nil {
		return nil, err
	}
	slog.Info("Starting enrichment pass", "candidates", len(facilities))

	limiter := rate.NewLimiter(rate.Every(uc.cfg.RequestDelay), 1)
	jobs := make(chan *entity.Facility)
	go func() {
		defer close(jobs)
		for _, f := range facilities {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	var processed, failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < uc.cfg.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for facility := range jobs {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				if err := uc.enrichOne(ctx, facility); err != nil {
					slog.Warn("Enrichment failed",
						"source_id", facility.SourceID, "website", facility.Website, "error", err)
					metrics.WebsitesEnriched.WithLabelValues("failure").Inc()
					failed.Add(1)
					continue
				}
				metrics.WebsitesEnriched.WithLabelValues("success").Inc()
				processed.Add(1)
			}
		}()
	}
	wg.Wait()

	result := &EnrichResult{Processed: int(processed.Load()), Failed: int(failed.Load())}
	slog.Info("Enrichment pass finished", "processed", result.Processed, "failed", result.Failed)
	return result, ctx.Err()
}

func (uc *enrichUseCase) enrichOne(ctx context.Context, facility *entity.Facility) error {
	site, err := uc.websites.Render(ctx, facility.Website)
	if err != nil {
		return err
	}

	enrichment := &entity.WebsiteEnrichment{
		SourceID:       facility.SourceID,
		PageTitle:      strings.TrimSpace(site.Title),
		DetectedLabels: detectServiceLabels(site.BodyText),
		BookingLink:    bookingLinkPattern.FindString(site.BodyText),
	}
	return uc.facilities.SaveEnrichment(ctx, enrichment)
}

// detectServiceLabels scans rendered page text for known service
// phrases, returning deduplicated labels in first-seen order.
func detectServiceLabels(bodyText string) []string {
	lower := strings.ToLower(bodyText)
	seen := make(map[string]bool)
	var labels []string
	for _, kw := range serviceKeywords {
		if seen[kw.label] || !strings.Contains(lower, kw.phrase) {
			continue
		}
		seen[kw.label] = true
		labels = append(labels, kw.label)
	}
	return labels
}
