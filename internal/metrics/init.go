package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Upstream fetch ---
	for _, outcome := range []string{"success", "error", "timeout"} {
		FetchAttemptsTotal.WithLabelValues(outcome)
		FetchAttemptDuration.WithLabelValues(outcome)
	}
	for _, reason := range []string{"transport", "timeout", "cancelled", "pool_closed"} {
		FetchFailuresTotal.WithLabelValues(reason)
	}

	// --- Transcode by target format ---
	for _, format := range []string{"avif", "jpeg"} {
		for _, result := range []string{"success", "larger", "error"} {
			TranscodesTotal.WithLabelValues(format, result)
		}
		TranscodeDuration.WithLabelValues(format)
	}

	// --- Decoded source containers ---
	for _, format := range []string{"jpeg", "png", "gif", "webp", "bmp", "tiff", "unknown"} {
		TranscodeDecodeByFormat.WithLabelValues(format)
	}

	// --- Bypass reasons ---
	for _, reason := range []string{"already_small", "criteria_not_met", "non-image"} {
		BypassTotal.WithLabelValues(reason)
	}

	// --- Response bytes by format ---
	for _, format := range []string{"avif", "jpeg", "original"} {
		HTTPResponseBytes.WithLabelValues(format)
	}
}
