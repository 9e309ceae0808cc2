// Package metrics provides Prometheus instrumentation for the proxy.
//
// All metrics are prefixed with "bandwidth_proxy_" and served on a separate
// port (METRICS_PORT) so they are never exposed on the public listener.
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal: Counter of requests by method, path and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of requests currently being processed
//   - HTTPResponseBytes: Counter of bytes served by response format
//
// ## Upstream Fetch Metrics
//   - FetchAttemptsTotal / FetchAttemptDuration: per attempt, by outcome
//   - FetchRetriesTotal: attempts beyond the first
//   - FetchFailuresTotal: fetches that exhausted their attempts, by reason
//   - FetchPermitWait: time spent waiting for a concurrency permit
//   - FetchPermitsInUse / FetchPermitsWaiting / FetchPermitsCapacity: sampled by the Collector
//   - UpstreamBytesTotal: bytes read from origins
//
// ## Transcode Metrics
//   - TranscodesTotal: jobs by target format and result (success, larger, error)
//   - TranscodeDuration: decode+resize+encode time by target format
//   - TranscodeDecodeByFormat: sniffed source containers
//   - BytesSavedTotal: original minus output size for compressed responses
//   - BypassTotal: responses passed through untouched, by reason
//
// ## Codec Pool and Memory
//   - CodecWorkers / CodecWorkersBusy / CodecJobsWaiting
//   - MemoryUsageRatio / MemoryPaused / MemoryGCPauses / MemoryAllocBytes
//
// # Usage
//
// Upstream fetch metrics are recorded through [NewFetchObserver], which
// implements fetch.Observer so the fetch package stays free of Prometheus.
// Gauges for pooled resources are sampled by a [Collector]:
//
//	collector := metrics.NewCollector(metrics.StatsFunc(func() metrics.Stats {
//		return metrics.Stats{PermitsInUse: permits.InUse()}
//	}), 15*time.Second, logger)
//	collector.Start()
//	defer collector.Stop()
//
// Call [InitializeMetrics] once at startup so every labelled series exists
// from the first scrape.
package metrics
