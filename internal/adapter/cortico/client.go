package cortico

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/navicare/facility-sync/internal/entity"
	"github.com/navicare/facility-sync/internal/repository"
	"github.com/navicare/facility-sync/pkg/metrics"
	"github.com/navicare/facility-sync/pkg/retry"
)

// transientError marks a failure worth another attempt: network errors,
// 5xx responses and rate limiting.
type transientError struct {
	status int
	err    error
}

func (e *transientError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return fmt.Sprintf("upstream returned HTTP %d", e.status)
}

func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// Client fetches and normalizes pages from one Cortico category
// endpoint. It implements repository.PageSource. Retries happen inside
// FetchPage; a returned error is terminal for that page. The client
// never touches storage or checkpoint state.
type Client struct {
	httpClient *http.Client
	baseURL    string
	category   entity.FacilityType
	retryOpts  retry.Options
}

func NewClient(baseURL string, category entity.FacilityType, timeout time.Duration, retryOpts retry.Options) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		category:   category,
		retryOpts:  retryOpts,
	}
}

// PageCount fetches the first page and reports the upstream's own page
// count, so the crawl range tracks the growing data set.
func (c *Client) PageCount(ctx context.Context) (int, error) {
	env, err := c.fetchEnvelope(ctx, 1)
	if err != nil {
		return 0, err
	}
	if env.TotalPages > 0 {
		return env.TotalPages, nil
	}
	if len(env.Results) > 0 {
		return 1, nil
	}
	return 0, nil
}

// FetchPage retrieves page `page` and normalizes its records. Records
// that cannot be normalized are counted in Skipped, not returned.
func (c *Client) FetchPage(ctx context.Context, page int) (*entity.FacilityPage, error) {
	env, err := c.fetchEnvelope(ctx, page)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &entity.FacilityPage{
		Page:       page,
		TotalPages: env.TotalPages,
		HasMore:    env.Links.Next != nil,
	}
	for i := range env.Results {
		facility, observation, err := normalizeRecord(&env.Results[i], c.category, now)
		if err != nil {
			slog.Warn("Skipping record that failed normalization",
				"category", c.category, "page", page, "error", err)
			result.Skipped++
			metrics.RecordsSkipped.Inc()
			continue
		}
		result.Facilities = append(result.Facilities, facility)
		if observation != nil {
			result.Observations = append(result.Observations, observation)
		}
	}
	return result, nil
}

func (c *Client) fetchEnvelope(ctx context.Context, page int) (*pageEnvelope, error) {
	start := time.Now()
	var env pageEnvelope
	err := retry.Do(ctx, c.retryOpts, isTransient, func(ctx context.Context) error {
		return c.getPage(ctx, page, &env)
	})
	metrics.FetchDuration.WithLabelValues(string(c.category)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.PagesFetched.WithLabelValues(string(c.category), "failure").Inc()
		if isTransient(err) {
			return nil, fmt.Errorf("page %d: %w: %w", page, repository.ErrRetriesExhausted, err)
		}
		return nil, fmt.Errorf("page %d: %w", page, err)
	}
	metrics.PagesFetched.WithLabelValues(string(c.category), "success").Inc()
	return &env, nil
}

// getPage issues one GET attempt and classifies the outcome.
func (c *Client) getPage(ctx context.Context, page int, env *pageEnvelope) error {
	url := fmt.Sprintf("%s?format=json&page=%d", c.baseURL, page)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.FetchRetries.Inc()
		return &transientError{err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		*env = pageEnvelope{}
		if err := json.NewDecoder(resp.Body).Decode(env); err != nil {
			return fmt.Errorf("%w: %w", repository.ErrMalformedPage, err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.FetchRetries.Inc()
		slog.Warn("Rate limited by upstream", "url", url)
		// Wait out the rate limit before the generic backoff kicks in.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryOpts.InitialWait):
		}
		return &transientError{status: resp.StatusCode}
	case resp.StatusCode >= 500:
		metrics.FetchRetries.Inc()
		slog.Warn("Transient upstream failure", "url", url, "status", resp.StatusCode)
		return &transientError{status: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return repository.ErrPageNotFound
	default:
		return fmt.Errorf("unexpected HTTP %d for %s", resp.StatusCode, url)
	}
}
