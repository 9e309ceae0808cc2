package fetch

// Observer records fetch metrics. Implementations are provided by the
// metrics package to break the import cycle between fetch and metrics.
type Observer interface {
	// ObserveAttempt records one HTTP attempt. outcome is "success",
	// "error" or "timeout"; bytes is the body length read.
	ObserveAttempt(outcome string, durationSeconds float64, bytes int)

	// ObserveRetry records an attempt beyond the first.
	ObserveRetry()

	// ObserveFailure records a fetch that returned an error. reason is
	// "transport", "timeout", "cancelled" or "pool_closed".
	ObserveFailure(reason string)

	// ObservePermitWait records time spent in PermitPool.Acquire.
	ObservePermitWait(durationSeconds float64)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, float64, int) {}
func (nopObserver) ObserveRetry()                       {}
func (nopObserver) ObserveFailure(string)               {}
func (nopObserver) ObservePermitWait(float64)           {}
