// Package fetch retrieves upstream image bytes under a process-wide
// concurrency cap, with a fixed throttle delay and a bounded retry on
// transport failures.
//
// Every call to [Fetcher.Fetch] walks the same small state machine:
//
//	acquiring -> throttling -> attempting(1) -> done
//	                                  |
//	                                  +-> attempting(2) -> done | exhausted
//
// A permit from the shared [PermitPool] is held from acquisition until the
// call returns, on every path. Only transport failures (dial, TLS, per-attempt
// timeout, body read) are retried, with no backoff; a non-2xx upstream status
// is a normal [Result] and classification is left to the caller. Cancellation
// of the caller's context is never retried.
//
// Metrics are reported through [Observer], implemented by the metrics package.
package fetch
