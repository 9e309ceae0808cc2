package metrics

import "bandwidth-proxy/internal/fetch"

// fetchObserver implements fetch.Observer using the Prometheus
// metrics declared in this package.
type fetchObserver struct{}

// NewFetchObserver creates an observer that records upstream fetch metrics
// into the counters and histograms declared in metrics.go.
func NewFetchObserver() fetch.Observer {
	return &fetchObserver{}
}

func (o *fetchObserver) ObserveAttempt(outcome string, durationSeconds float64, bytes int) {
	FetchAttemptsTotal.WithLabelValues(outcome).Inc()
	FetchAttemptDuration.WithLabelValues(outcome).Observe(durationSeconds)
	if bytes > 0 {
		UpstreamBytesTotal.Add(float64(bytes))
	}
}

func (o *fetchObserver) ObserveRetry() {
	FetchRetriesTotal.Inc()
}

func (o *fetchObserver) ObserveFailure(reason string) {
	FetchFailuresTotal.WithLabelValues(reason).Inc()
}

func (o *fetchObserver) ObservePermitWait(durationSeconds float64) {
	FetchPermitWait.Observe(durationSeconds)
}
