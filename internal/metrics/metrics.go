package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bandwidth_proxy_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPResponseBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_http_response_bytes_total",
			Help: "Bytes written to clients by response format",
		},
		[]string{"format"},
	)
)

// Upstream fetch metrics
var (
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_fetch_attempts_total",
			Help: "Upstream fetch attempts by outcome",
		},
		[]string{"outcome"}, // "success", "error", "timeout"
	)

	FetchAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bandwidth_proxy_fetch_attempt_duration_seconds",
			Help:    "Duration of a single upstream fetch attempt including body read",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		},
		[]string{"outcome"},
	)

	FetchRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_fetch_retries_total",
			Help: "Upstream fetch retries after a transient failure",
		},
	)

	FetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_fetch_failures_total",
			Help: "Upstream fetches that failed after all attempts",
		},
		[]string{"reason"}, // "transport", "timeout", "cancelled", "pool_closed"
	)

	FetchPermitWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bandwidth_proxy_fetch_permit_wait_seconds",
			Help:    "Time spent waiting for a fetch permit",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		},
	)

	FetchPermitsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_fetch_permits_in_use",
			Help: "Fetch permits currently held",
		},
	)

	FetchPermitsCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_fetch_permits_capacity",
			Help: "Maximum concurrent upstream fetches",
		},
	)

	FetchPermitsWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_fetch_permits_waiting",
			Help: "Requests waiting for a fetch permit",
		},
	)

	UpstreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_upstream_bytes_total",
			Help: "Bytes read from upstream origins",
		},
	)
)

// Transcode metrics
var (
	TranscodesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_transcodes_total",
			Help: "Transcode jobs by target format and result",
		},
		[]string{"format", "result"}, // result: "success", "larger", "error"
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bandwidth_proxy_transcode_duration_seconds",
			Help:    "Decode, resize and encode time by target format",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"format"},
	)

	TranscodeDecodeByFormat = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_transcode_decode_by_format_total",
			Help: "Decoded source images by sniffed container",
		},
		[]string{"format"},
	)

	BytesSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_bytes_saved_total",
			Help: "Bytes saved by compression (original minus output)",
		},
	)

	BypassTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_bypass_total",
			Help: "Responses returned without transcoding by reason",
		},
		[]string{"reason"},
	)
)

// Codec worker pool metrics
var (
	CodecWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_codec_workers",
			Help: "Configured number of codec workers",
		},
	)

	CodecWorkersBusy = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_codec_workers_busy",
			Help: "Codec workers currently running a job",
		},
	)

	CodecJobsWaiting = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_codec_jobs_waiting",
			Help: "Transcode jobs waiting for a free codec worker",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_memory_paused",
			Help: "1 when transcoding is paused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandwidth_proxy_memory_gc_pauses_total",
			Help: "Times transcoding was paused and a GC forced due to memory pressure",
		},
	)

	MemoryAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_memory_alloc_bytes",
			Help: "Current heap allocation in bytes",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bandwidth_proxy_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
