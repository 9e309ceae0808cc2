package fetch

import (
	"context"
	"errors"
	"fmt"
)

// errPermanent marks attempt failures that another attempt cannot fix.
var errPermanent = errors.New("permanent fetch failure")

// ErrBodyTooLarge is returned when an upstream body exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = fmt.Errorf("%w: upstream body too large", errPermanent)

// TransportError reports a fetch that failed at the transport level on
// every allowed attempt.
type TransportError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the last attempt hit its per-attempt deadline.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// RetryPolicy decides whether a failed attempt is followed by another.
// There is no backoff between attempts.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
}

// ShouldRetry reports whether attempt (1-based) failing with err warrants
// another attempt. Cancellation and permanent failures are never retried;
// per-attempt deadline expiry is.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt >= p.MaxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, errPermanent) || errors.Is(err, ErrPoolClosed) {
		return false
	}
	return true
}
