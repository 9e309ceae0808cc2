package pipeline

import (
	"context"
	"errors"
	"net/http"

	"bandwidth-proxy/internal/fetch"
	"bandwidth-proxy/internal/logging"
	"bandwidth-proxy/internal/media"
	"bandwidth-proxy/internal/memory"
	"bandwidth-proxy/internal/metrics"
	"bandwidth-proxy/internal/policy"
	"bandwidth-proxy/internal/transcoder"
	"bandwidth-proxy/internal/workers"
)

// Fetcher retrieves upstream bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string, inbound http.Header) (*fetch.Result, error)
}

// Transcoder re-encodes image bytes.
type Transcoder interface {
	Transcode(ctx context.Context, req transcoder.Request) (*transcoder.Outcome, error)
}

// Response describes a successful proxy response.
type Response struct {
	Body        []byte
	ContentType string
	URLHash     string
	// BypassReason is set when the upstream bytes were passed through untouched
	BypassReason policy.Reason
	// Transcoded is true when the transcoder ran, even if it fell back to the original
	Transcoded   bool
	Format       media.Format
	BytesSaved   int64
	OriginalSize uint64
}

// Pipeline runs compress requests.
type Pipeline struct {
	fetcher    Fetcher
	policy     *policy.Policy
	transcoder Transcoder
	logger     *logging.Logger
}

// New creates a Pipeline.
func New(fetcher Fetcher, bypass *policy.Policy, tc Transcoder, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		policy:     bypass,
		transcoder: tc,
		logger:     logger,
	}
}

// Process runs one request end to end. Errors are always *Error.
func (p *Pipeline) Process(ctx context.Context, params Params, inbound http.Header) (*Response, error) {
	log := p.logger
	if params.RequestID != "" {
		log = log.With("request_id", params.RequestID)
	}

	canonical, err := CanonicalURL(params.URL)
	if err != nil {
		log.Event(logging.LevelDebug, "invalid url", "url", logging.Truncate(params.URL, 60), "error", err)
		return nil, &Error{Kind: KindValidation, Message: "Invalid URL", URL: params.URL, Err: err}
	}
	hash := HashURL(canonical)

	res, err := p.fetcher.Fetch(ctx, canonical, inbound)
	if err != nil {
		return nil, fetchError(log, canonical, err)
	}

	if !res.OK() {
		log.Warn("fetch [✗] %d - %s", res.StatusCode, logging.Truncate(canonical, 60))
		return nil, &Error{
			Kind:           KindUpstreamStatus,
			Message:        "Upstream fetch failed",
			URL:            canonical,
			UpstreamStatus: res.StatusCode,
		}
	}
	log.Info("fetch [✓] %d - %s", res.StatusCode, logging.Truncate(canonical, 60))

	size := uint64(len(res.Body))
	logRequest(log, canonical, params, res.ContentType, inbound)

	if reason, bypass := p.policy.ShouldBypass(size, res.ContentType, params.WantAVIF); bypass {
		metrics.BypassTotal.WithLabelValues(string(reason)).Inc()
		log.Event(logging.LevelInfo, "bypass",
			"url", logging.Truncate(canonical, 20),
			"size", logging.FormatBytes(size),
			"reason", reason,
		)
		return &Response{
			Body:         res.Body,
			ContentType:  contentTypeOr(res.ContentType),
			URLHash:      hash,
			BypassReason: reason,
			Format:       media.FormatOriginal,
			OriginalSize: size,
		}, nil
	}

	out, err := p.transcoder.Transcode(ctx, transcoder.Request{
		Source:       res.Body,
		WantAVIF:     params.WantAVIF,
		Grayscale:    params.Grayscale,
		Quality:      params.Quality,
		OriginalSize: size,
	})
	if err != nil {
		return nil, transcodeError(log, canonical, size, params.Quality, err)
	}

	contentType := "image/" + string(out.Format)
	if out.Format == media.FormatOriginal {
		contentType = contentTypeOr(res.ContentType)
	}

	return &Response{
		Body:         out.Data,
		ContentType:  contentType,
		URLHash:      hash,
		Transcoded:   true,
		Format:       out.Format,
		BytesSaved:   out.BytesSaved,
		OriginalSize: size,
	}, nil
}

func fetchError(log *logging.Logger, url string, err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		log.Debug("fetch abandoned, client went away: %s", logging.Truncate(url, 60))
		return &Error{Kind: KindCancelled, Message: "Request cancelled", URL: url, Err: err}
	case errors.Is(err, fetch.ErrPoolClosed):
		return &Error{Kind: KindResourceExhausted, Message: "Server is shutting down", URL: url, Err: err}
	default:
		log.Event(logging.LevelError, "upstream fetch error", "url", url, "error", err)
		return &Error{Kind: KindUpstreamTransport, Message: "Failed to fetch image", URL: url, Err: err}
	}
}

func transcodeError(log *logging.Logger, url string, size uint64, quality int, err error) *Error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Debug("transcode abandoned, client went away: %s", logging.Truncate(url, 60))
		return &Error{Kind: KindCancelled, Message: "Request cancelled", URL: url, Err: err}
	case errors.Is(err, workers.ErrPoolClosed), errors.Is(err, memory.ErrMonitorStopped):
		return &Error{Kind: KindResourceExhausted, Message: "Server is shutting down", URL: url, Err: err}
	default:
		log.Event(logging.LevelError, "compression error",
			"url", url,
			"size", logging.FormatBytes(size),
			"quality", quality,
			"error", err,
		)
		return &Error{Kind: KindCodec, Message: "Compression failed", URL: url, Err: err}
	}
}

func logRequest(log *logging.Logger, url string, params Params, contentType string, inbound http.Header) {
	if !log.Enabled(logging.LevelInfo) {
		return
	}
	log.Event(logging.LevelInfo, "request",
		"url", logging.Truncate(url, 20),
		"ua", logging.Truncate(inbound.Get("User-Agent"), 100),
		"referer", logging.Truncate(inbound.Get("Referer"), 60),
		"ip", inbound.Get("X-Forwarded-For"),
		"avif", params.WantAVIF,
		"bw", params.Grayscale,
		"q", params.Quality,
		"type", contentType,
	)
}

func contentTypeOr(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
