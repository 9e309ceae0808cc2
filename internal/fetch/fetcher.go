package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bandwidth-proxy/internal/headers"
	"bandwidth-proxy/internal/logging"
)

// Defaults
const (
	DefaultConcurrency   = 10
	DefaultTimeout       = 8 * time.Second
	DefaultMaxAttempts   = 2
	DefaultThrottleDelay = 400 * time.Millisecond
	DefaultMaxBodyBytes  = 32 << 20
)

// Config configures upstream fetching. It is read-only once the Fetcher is built.
type Config struct {
	// Timeout bounds a single attempt: connect, headers and body read.
	Timeout time.Duration
	// MaxAttempts is the total number of attempts on transport failure.
	MaxAttempts int
	// ThrottleDelay is waited after acquiring a permit, before the first attempt.
	ThrottleDelay time.Duration
	// Headers is the inbound header whitelist forwarded upstream.
	Headers []string
	// MaxBodyBytes caps the upstream body read.
	MaxBodyBytes int64
}

// DefaultConfig returns the default fetch configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:       DefaultTimeout,
		MaxAttempts:   DefaultMaxAttempts,
		ThrottleDelay: DefaultThrottleDelay,
		Headers:       headers.DefaultWhitelist,
		MaxBodyBytes:  DefaultMaxBodyBytes,
	}
}

// Result is a completed upstream response. Any status code is a Result.
type Result struct {
	StatusCode  int
	ContentType string
	Body        []byte
	// Attempts is the number of attempts made, 1 or more.
	Attempts int
}

// OK reports whether the upstream status is 2xx.
func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type state int

const (
	stateAcquiring state = iota
	stateThrottling
	stateAttempting
	stateDone
	stateExhausted
)

func (s state) String() string {
	switch s {
	case stateAcquiring:
		return "acquiring"
	case stateThrottling:
		return "throttling"
	case stateAttempting:
		return "attempting"
	case stateDone:
		return "done"
	case stateExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Fetcher performs upstream GETs bounded by a shared PermitPool.
type Fetcher struct {
	client   *http.Client
	permits  *PermitPool
	config   Config
	retry    RetryPolicy
	observer Observer
	logger   *logging.Logger
}

// New creates a Fetcher. Zero config fields take their defaults; a nil
// observer discards metrics.
func New(client *http.Client, permits *PermitPool, config Config, observer Observer, logger *logging.Logger) *Fetcher {
	def := DefaultConfig()
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.ThrottleDelay < 0 {
		config.ThrottleDelay = 0
	}
	if config.Headers == nil {
		config.Headers = def.Headers
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = def.MaxBodyBytes
	}
	if client == nil {
		client = NewHTTPClient()
	}
	if observer == nil {
		observer = nopObserver{}
	}

	return &Fetcher{
		client:   client,
		permits:  permits,
		config:   config,
		retry:    RetryPolicy{MaxAttempts: config.MaxAttempts},
		observer: observer,
		logger:   logger,
	}
}

// Permits returns the pool the fetcher draws from.
func (f *Fetcher) Permits() *PermitPool {
	return f.permits
}

// Fetch GETs url, forwarding the whitelisted subset of inbound.
//
// It returns a *Result for any upstream status, or one of: ErrPoolClosed,
// the caller's ctx.Err(), or a *TransportError once attempts are exhausted.
func (f *Fetcher) Fetch(ctx context.Context, url string, inbound http.Header) (*Result, error) {
	forward := headers.PickHeader(inbound, f.config.Headers)

	var (
		st      = stateAcquiring
		release func()
		attempt int
		result  *Result
		lastErr error
		start   = time.Now()
	)
	defer func() {
		if release != nil {
			release()
		}
	}()

	for {
		switch st {
		case stateAcquiring:
			waitStart := time.Now()
			r, err := f.permits.Acquire(ctx)
			f.observer.ObservePermitWait(time.Since(waitStart).Seconds())
			if err != nil {
				return nil, f.fail(url, st, err)
			}
			release = r
			st = stateThrottling

		case stateThrottling:
			if err := sleep(ctx, f.config.ThrottleDelay); err != nil {
				return nil, f.fail(url, st, err)
			}
			st = stateAttempting

		case stateAttempting:
			attempt++
			res, err := f.attempt(ctx, url, forward)
			if err == nil {
				result = res
				st = stateDone
				continue
			}
			lastErr = err

			// The caller went away; nothing to retry for
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, f.fail(url, st, ctxErr)
			}
			if f.retry.ShouldRetry(attempt, err) {
				f.observer.ObserveRetry()
				f.logger.Debug("fetch retry %d/%d for %s: %v", attempt+1, f.config.MaxAttempts, url, err)
				continue
			}
			st = stateExhausted

		case stateDone:
			result.Attempts = attempt
			f.logger.Event(logging.LevelDebug, "fetch ✓",
				"url", logging.Truncate(url, 80),
				"status", result.StatusCode,
				"size", logging.FormatBytes(uint64(len(result.Body))),
				"attempts", attempt,
				"elapsed", time.Since(start).Round(time.Millisecond),
			)
			return result, nil

		case stateExhausted:
			terr := &TransportError{URL: url, Attempts: attempt, Err: lastErr}
			return nil, f.fail(url, st, terr)
		}
	}
}

// fail records and logs a failed fetch and returns err unchanged.
func (f *Fetcher) fail(url string, st state, err error) error {
	reason := "transport"
	switch {
	case errors.Is(err, ErrPoolClosed):
		reason = "pool_closed"
	case errors.Is(err, context.Canceled):
		reason = "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "timeout"
	}
	f.observer.ObserveFailure(reason)

	level := logging.LevelWarn
	if reason == "cancelled" || reason == "pool_closed" {
		level = logging.LevelDebug
	}
	f.logger.Event(level, "fetch ✗",
		"url", logging.Truncate(url, 80),
		"state", st,
		"reason", reason,
		"error", err,
	)
	return err
}

// attempt performs one GET with its own deadline covering the body read.
func (f *Fetcher) attempt(ctx context.Context, url string, forward http.Header) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errPermanent, err)
	}
	req.Header = forward.Clone()

	resp, err := f.client.Do(req)
	if err != nil {
		f.observer.ObserveAttempt(attemptOutcome(err), time.Since(start).Seconds(), 0)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err == nil && int64(len(body)) > f.config.MaxBodyBytes {
		err = ErrBodyTooLarge
	}
	if err != nil {
		f.observer.ObserveAttempt(attemptOutcome(err), time.Since(start).Seconds(), len(body))
		return nil, fmt.Errorf("reading body: %w", err)
	}

	f.observer.ObserveAttempt("success", time.Since(start).Seconds(), len(body))
	return &Result{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func attemptOutcome(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
