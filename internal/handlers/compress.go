package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"bandwidth-proxy/internal/logging"
	"bandwidth-proxy/internal/metrics"
	"bandwidth-proxy/internal/middleware"
	"bandwidth-proxy/internal/pipeline"
	"bandwidth-proxy/internal/streaming"
)

const compressedBy = "bandwidth-hero"

// ErrorResponse is the JSON body of every failed compress request.
type ErrorResponse struct {
	Error string `json:"error"`
	URL   string `json:"url,omitempty"`
}

// setNoCacheHeaders marks the response as private to this request. Results
// depend on every query parameter, so intermediaries must not reuse them.
func setNoCacheHeaders(h http.Header) {
	h.Set("Content-Encoding", "identity")
	h.Set("Cache-Control", "private, no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("Vary", "url, jpeg, grayscale, quality")
}

// Compress fetches the image named by the url parameter and returns it
// compressed, or untouched when compressing would not help.
func (h *Handlers) Compress(w http.ResponseWriter, r *http.Request) {
	params, err := pipeline.ParseParams(r.URL.Query())
	if err != nil {
		h.logger.Debug("rejected compress request: %v", err)
		h.writeError(w, err)
		return
	}
	params.RequestID = middleware.RequestIDFromContext(r.Context())

	resp, err := h.pipeline.Process(r.Context(), params, r.Header)
	if err != nil {
		h.writeError(w, err)
		return
	}

	hdr := w.Header()
	setNoCacheHeaders(hdr)
	hdr.Set("Content-Type", resp.ContentType)
	hdr.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	hdr.Set("X-Url-Hash", resp.URLHash)
	if resp.BypassReason != "" {
		hdr.Set("X-Bypass-Reason", string(resp.BypassReason))
	}
	if resp.Transcoded {
		hdr.Set("X-Compressed-By", compressedBy)
		hdr.Set("X-Bytes-Saved", strconv.FormatInt(resp.BytesSaved, 10))
	}
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	n, err := streaming.WriteBody(r.Context(), w, resp.Body, h.stream)
	metrics.HTTPResponseBytes.WithLabelValues(string(resp.Format)).Add(float64(n))
	if err != nil {
		if errors.Is(err, streaming.ErrClientGone) {
			h.logger.Debug("client went away after %s of %s", logging.FormatBytes(uint64(n)), logging.FormatBytes(uint64(len(resp.Body))))
			return
		}
		h.logger.Warn("failed to write response for %s: %v", logging.Truncate(resp.URLHash, 12), err)
	}
}

// writeError maps err to a status and JSON body. Pipeline failures have
// already been logged with their URL and size context.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		h.logger.Error("unclassified compress error: %v", err)
		perr = &pipeline.Error{Kind: pipeline.KindCodec, Message: "Internal server error", Err: err}
	}

	status := perr.StatusCode()
	if perr.Kind == pipeline.KindCancelled {
		// nobody is listening; the status only feeds the access log and metrics
		w.WriteHeader(status)
		return
	}

	h.writeJSONError(w, ErrorResponse{Error: perr.Message, URL: perr.URL}, status)
}
