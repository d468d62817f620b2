package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PagesFetched        *prometheus.CounterVec
	FetchRetries        prometheus.Counter
	FetchDuration       *prometheus.HistogramVec
	FacilitiesWritten   *prometheus.CounterVec
	ObservationsWritten prometheus.Counter
	RecordsSkipped      prometheus.Counter
	BatchCommits        *prometheus.CounterVec
	BatchCommitDuration prometheus.Histogram
	CheckpointWatermark *prometheus.GaugeVec
	FacilitiesRetired   prometheus.Counter
	ObservationsPruned  prometheus.Counter
	WebsitesEnriched    *prometheus.CounterVec
)

func Init() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests to the status server.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests to the status server.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_pages_fetched_total",
			Help: "Total upstream pages fetched.",
		},
		[]string{"mode", "status"}, // status: success, failure
	)

	FetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_fetch_retries_total",
			Help: "Total transient fetch failures that were retried.",
		},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_fetch_duration_seconds",
			Help:    "Duration of upstream page fetches, retries included.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"category"},
	)

	FacilitiesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_facilities_written_total",
			Help: "Total facility rows written by committed batches.",
		},
		[]string{"mode"},
	)

	ObservationsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_observations_written_total",
			Help: "Total observations appended by committed batches.",
		},
	)

	RecordsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_records_skipped_total",
			Help: "Total upstream records dropped by normalization.",
		},
	)

	BatchCommits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_batch_commits_total",
			Help: "Total batch commit attempts.",
		},
		[]string{"status"}, // status: success, failure
	)

	BatchCommitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_batch_commit_duration_seconds",
			Help:    "Duration of batch commits, retries included.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 15, 30},
		},
	)

	CheckpointWatermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_checkpoint_watermark",
			Help: "Last contiguously committed page per crawl identity.",
		},
		[]string{"mode", "segment"},
	)

	FacilitiesRetired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_facilities_retired_total",
			Help: "Total facilities retired by reconciliation.",
		},
	)

	ObservationsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_observations_pruned_total",
			Help: "Total observations removed by retention cleanup.",
		},
	)

	WebsitesEnriched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_websites_enriched_total",
			Help: "Total facility websites processed by the enrichment pass.",
		},
		[]string{"status"}, // status: success, failure
	)
}
