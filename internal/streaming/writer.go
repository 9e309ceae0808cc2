package streaming

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a chunk could not be written before its deadline.
	// This typically occurs when a client is receiving data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the body completed.
	ErrClientGone = errors.New("client disconnected")
)

// Config configures chunked body writes.
type Config struct {
	// WriteTimeout bounds each chunk write (0 = no deadline)
	WriteTimeout time.Duration
	// ChunkSize is the size of each write (0 = single write)
	ChunkSize int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 15 * time.Second,
		ChunkSize:    32 * 1024,
	}
}

// WriteBody writes body to w in chunks, extending the connection write deadline
// before every chunk and flushing after it. It returns the number of bytes
// written. The deadline is cleared again on return so keep-alive connections
// are not poisoned for the next request.
func WriteBody(ctx context.Context, w http.ResponseWriter, body []byte, cfg Config) (int64, error) {
	rc := http.NewResponseController(w)
	deadlines := cfg.WriteTimeout > 0
	if deadlines {
		defer func() {
			_ = rc.SetWriteDeadline(time.Time{})
		}()
	}

	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = len(body)
	}

	var written int64
	for len(body) > 0 {
		if ctx.Err() != nil {
			return written, ErrClientGone
		}

		n := chunk
		if len(body) < n {
			n = len(body)
		}

		if deadlines {
			if err := rc.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout)); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return written, fmt.Errorf("set write deadline: %w", err)
			}
		}

		m, err := w.Write(body[:n])
		written += int64(m)
		if err != nil {
			return written, classify(ctx, err)
		}
		body = body[n:]

		if len(body) > 0 {
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return written, classify(ctx, err)
			}
		}
	}

	return written, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrWriteTimeout, err)
	case ctx.Err() != nil:
		return ErrClientGone
	default:
		return err
	}
}
