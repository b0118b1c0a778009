package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"

	ModeCurrentWeek = "current_week"
	ModeAllSeries   = "all_series"

	OpRefreshToken  = "refresh_token"
	OpSearchSeries  = "search_series"
	OpManifestLink  = "manifest_link"
	OpDownloadChunk = "download_chunk"
	OpEnqueueJob    = "enqueue_job"

	BreakerIRacing = "iracing"
	BreakerQStash  = "qstash"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"route", "status_code"},
	)
)

// Sync pipeline metrics
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weekly_stats_sync_runs_total",
			Help: "Sync invocations by mode and outcome",
		},
		[]string{"mode", "result"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weekly_stats_sync_duration_seconds",
			Help:    "Wall time of one sync invocation",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"mode", "result"},
	)

	SeriesFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weekly_stats_series_fetch_total",
			Help: "Per-series fetch outcomes in all-series mode",
		},
		[]string{"result"},
	)

	RowsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weekly_stats_rows_upserted_total",
			Help: "Series weekly stat rows written to the cache",
		},
	)

	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_token_refresh_total",
			Help: "Access token checks by outcome (skipped means still valid)",
		},
		[]string{"result"},
	)
)

// Upstream metrics
var (
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Upstream API requests by operation and status",
		},
		[]string{"operation", "status_code"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	ChunkFilesPerFetch = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upstream_chunk_files_per_fetch",
			Help:    "Number of chunk files listed in a manifest",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half_open, 2=open)",
		},
		[]string{"breaker"},
	)
)

// BreakerStateValue maps a breaker state name onto the gauge encoding.
func BreakerStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half_open":
		return 1
	default:
		return 0
	}
}
