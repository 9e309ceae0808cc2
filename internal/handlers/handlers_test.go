package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bandwidth-proxy/internal/logging"
	"bandwidth-proxy/internal/media"
	"bandwidth-proxy/internal/middleware"
	"bandwidth-proxy/internal/pipeline"
	"bandwidth-proxy/internal/policy"
	"bandwidth-proxy/internal/startup"
	"bandwidth-proxy/internal/streaming"
)

type fakeProcessor struct {
	resp   *pipeline.Response
	err    error
	params pipeline.Params
	called bool
}

func (f *fakeProcessor) Process(_ context.Context, params pipeline.Params, _ http.Header) (*pipeline.Response, error) {
	f.called = true
	f.params = params
	return f.resp, f.err
}

type fakeReadiness struct{ closed bool }

func (f fakeReadiness) Closed() bool { return f.closed }

func newTestHandlers(p Processor, r Readiness) *Handlers {
	return New(p, r, Options{Stream: streaming.Config{ChunkSize: 7}}, logging.New(io.Discard, logging.LevelDebug))
}

func TestCompressTranscoded(t *testing.T) {
	body := []byte("fake-avif-bytes")
	proc := &fakeProcessor{resp: &pipeline.Response{
		Body:         body,
		ContentType:  "image/avif",
		URLHash:      "0123456789abcdef0123456789abcdef",
		Transcoded:   true,
		Format:       media.FormatAVIF,
		BytesSaved:   48000,
		OriginalSize: 48015,
	}}
	h := newTestHandlers(proc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/index?url=http://a.example/x.png&bw=1&l=55", http.NoBody)
	w := httptest.NewRecorder()
	h.Compress(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), body) {
		t.Errorf("body = %q, want %q", w.Body.Bytes(), body)
	}

	wantHeaders := map[string]string{
		"Content-Type":     "image/avif",
		"Content-Length":   "15",
		"Content-Encoding": "identity",
		"Cache-Control":    "private, no-store, no-cache, must-revalidate, max-age=0",
		"Pragma":           "no-cache",
		"Expires":          "0",
		"Vary":             "url, jpeg, grayscale, quality",
		"X-Url-Hash":       "0123456789abcdef0123456789abcdef",
		"X-Compressed-By":  "bandwidth-hero",
		"X-Bytes-Saved":    "48000",
	}
	for k, want := range wantHeaders {
		if got := w.Header().Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if got := w.Header().Get("X-Bypass-Reason"); got != "" {
		t.Errorf("X-Bypass-Reason = %q on transcoded response", got)
	}

	if !proc.params.Grayscale || proc.params.Quality != 55 || !proc.params.WantAVIF {
		t.Errorf("params = %+v", proc.params)
	}
}

func TestCompressPassesRequestID(t *testing.T) {
	proc := &fakeProcessor{resp: &pipeline.Response{Body: []byte("data"), ContentType: "image/jpeg", URLHash: "h"}}
	h := newTestHandlers(proc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/index?url=http://a.example/x.png", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	middleware.RequestID(http.HandlerFunc(h.Compress)).ServeHTTP(w, req)

	if proc.params.RequestID != "req-42" {
		t.Errorf("params.RequestID = %q, want req-42", proc.params.RequestID)
	}
}

func TestCompressBypass(t *testing.T) {
	proc := &fakeProcessor{resp: &pipeline.Response{
		Body:         []byte("tiny"),
		ContentType:  "image/png",
		URLHash:      "hash",
		BypassReason: policy.ReasonAlreadySmall,
		Format:       media.FormatOriginal,
		OriginalSize: 4,
	}}
	h := newTestHandlers(proc, nil)

	w := httptest.NewRecorder()
	h.Compress(w, httptest.NewRequest(http.MethodGet, "/api/index?url=http://a.example/x.png", http.NoBody))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Bypass-Reason"); got != "already_small" {
		t.Errorf("X-Bypass-Reason = %q, want already_small", got)
	}
	for _, k := range []string{"X-Compressed-By", "X-Bytes-Saved"} {
		if got := w.Header().Get(k); got != "" {
			t.Errorf("%s = %q on bypass response", k, got)
		}
	}
	if got := w.Header().Get("X-Url-Hash"); got != "hash" {
		t.Errorf("X-Url-Hash = %q", got)
	}
	if w.Body.String() != "tiny" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestCompressLargerOutputFallback(t *testing.T) {
	proc := &fakeProcessor{resp: &pipeline.Response{
		Body:        []byte("original"),
		ContentType: "image/jpeg",
		URLHash:     "hash",
		Transcoded:  true,
		Format:      media.FormatOriginal,
	}}
	h := newTestHandlers(proc, nil)

	w := httptest.NewRecorder()
	h.Compress(w, httptest.NewRequest(http.MethodGet, "/api/index?url=http://a.example/x.jpg", http.NoBody))

	if got := w.Header().Get("X-Bytes-Saved"); got != "0" {
		t.Errorf("X-Bytes-Saved = %q, want 0", got)
	}
	if got := w.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("Content-Type = %q, want upstream type", got)
	}
}

func TestCompressHead(t *testing.T) {
	proc := &fakeProcessor{resp: &pipeline.Response{Body: []byte("data"), ContentType: "image/jpeg", URLHash: "h"}}
	h := newTestHandlers(proc, nil)

	w := httptest.NewRecorder()
	h.Compress(w, httptest.NewRequest(http.MethodHead, "/api/index?url=http://a.example/x.jpg", http.NoBody))

	if w.Body.Len() != 0 {
		t.Errorf("HEAD wrote %d body bytes", w.Body.Len())
	}
	if got := w.Header().Get("Content-Length"); got != "4" {
		t.Errorf("Content-Length = %q, want 4", got)
	}
}

func TestCompressErrors(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		err        error
		wantStatus int
		wantBody   *ErrorResponse
		wantCalled bool
	}{
		{
			name:       "missing url",
			query:      "",
			wantStatus: http.StatusBadRequest,
			wantBody:   &ErrorResponse{Error: "Missing query parameters"},
		},
		{
			name:       "invalid url",
			query:      "?url=ftp://a.example/x",
			err:        &pipeline.Error{Kind: pipeline.KindValidation, Message: "Invalid URL", URL: "ftp://a.example/x"},
			wantStatus: http.StatusBadRequest,
			wantBody:   &ErrorResponse{Error: "Invalid URL", URL: "ftp://a.example/x"},
			wantCalled: true,
		},
		{
			name:       "upstream transport",
			query:      "?url=http://a.example/x",
			err:        &pipeline.Error{Kind: pipeline.KindUpstreamTransport, Message: "Failed to fetch image", URL: "http://a.example/x"},
			wantStatus: http.StatusBadGateway,
			wantBody:   &ErrorResponse{Error: "Failed to fetch image", URL: "http://a.example/x"},
			wantCalled: true,
		},
		{
			name:       "upstream status",
			query:      "?url=http://a.example/x",
			err:        &pipeline.Error{Kind: pipeline.KindUpstreamStatus, Message: "Upstream fetch failed", URL: "http://a.example/x", UpstreamStatus: 404},
			wantStatus: http.StatusBadGateway,
			wantBody:   &ErrorResponse{Error: "Upstream fetch failed", URL: "http://a.example/x"},
			wantCalled: true,
		},
		{
			name:       "codec",
			query:      "?url=http://a.example/x",
			err:        &pipeline.Error{Kind: pipeline.KindCodec, Message: "Compression failed", URL: "http://a.example/x"},
			wantStatus: http.StatusInternalServerError,
			wantBody:   &ErrorResponse{Error: "Compression failed", URL: "http://a.example/x"},
			wantCalled: true,
		},
		{
			name:       "shutting down",
			query:      "?url=http://a.example/x",
			err:        &pipeline.Error{Kind: pipeline.KindResourceExhausted, Message: "Server is shutting down", URL: "http://a.example/x"},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   &ErrorResponse{Error: "Server is shutting down", URL: "http://a.example/x"},
			wantCalled: true,
		},
		{
			name:       "client gone",
			query:      "?url=http://a.example/x",
			err:        &pipeline.Error{Kind: pipeline.KindCancelled, Message: "Request cancelled"},
			wantStatus: pipeline.StatusClientClosedRequest,
			wantCalled: true,
		},
		{
			name:       "unclassified",
			query:      "?url=http://a.example/x",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   &ErrorResponse{Error: "Internal server error"},
			wantCalled: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{err: tt.err}
			h := newTestHandlers(proc, nil)

			w := httptest.NewRecorder()
			h.Compress(w, httptest.NewRequest(http.MethodGet, "/api/index"+tt.query, http.NoBody))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if proc.called != tt.wantCalled {
				t.Errorf("pipeline called = %v, want %v", proc.called, tt.wantCalled)
			}
			if w.Header().Get("X-Url-Hash") != "" {
				t.Error("X-Url-Hash set on error response")
			}

			if tt.wantBody == nil {
				if w.Body.Len() != 0 {
					t.Errorf("unexpected body %q", w.Body.String())
				}
				return
			}

			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			var got ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode body %q: %v", w.Body.String(), err)
			}
			if got != *tt.wantBody {
				t.Errorf("body = %+v, want %+v", got, *tt.wantBody)
			}
		})
	}
}

func TestErrorResponseOmitsEmptyURL(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{Error: "Missing query parameters"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "url") {
		t.Errorf("marshalled %s, want no url field", data)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandlers(&fakeProcessor{}, nil)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		w := httptest.NewRecorder()
		h.Health(w, httptest.NewRequest(method, "/health", http.NoBody))

		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", method, w.Code)
		}
		want := "bandwidth-hero-proxy"
		if method == http.MethodHead {
			want = ""
		}
		if w.Body.String() != want {
			t.Errorf("%s body = %q, want %q", method, w.Body.String(), want)
		}
	}
}

func TestHealthCheckAndReadiness(t *testing.T) {
	tests := []struct {
		name       string
		readiness  Readiness
		wantStatus int
		wantHealth string
		wantReady  string
	}{
		{"no readiness source", nil, http.StatusOK, statusHealthy, "ready"},
		{"accepting", fakeReadiness{closed: false}, http.StatusOK, statusHealthy, "ready"},
		{"draining", fakeReadiness{closed: true}, http.StatusServiceUnavailable, statusDraining, "not_ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(&fakeProcessor{}, tt.readiness)

			w := httptest.NewRecorder()
			h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
			if w.Code != tt.wantStatus {
				t.Errorf("healthz status = %d, want %d", w.Code, tt.wantStatus)
			}
			var health HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
				t.Fatalf("decode healthz: %v", err)
			}
			if health.Status != tt.wantHealth {
				t.Errorf("healthz status field = %q, want %q", health.Status, tt.wantHealth)
			}
			if health.Version != startup.Version {
				t.Errorf("healthz version = %q, want %q", health.Version, startup.Version)
			}

			w = httptest.NewRecorder()
			h.ReadinessCheck(w, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
			if w.Code != tt.wantStatus {
				t.Errorf("readyz status = %d, want %d", w.Code, tt.wantStatus)
			}
			var ready map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &ready); err != nil {
				t.Fatalf("decode readyz: %v", err)
			}
			if ready["status"] != tt.wantReady {
				t.Errorf("readyz status = %q, want %q", ready["status"], tt.wantReady)
			}
		})
	}
}

type fakeMemoryGate struct{ paused bool }

func (f fakeMemoryGate) IsPaused() bool { return f.paused }

func TestHealthCheckReportsMemoryPause(t *testing.T) {
	for _, paused := range []bool{false, true} {
		h := New(&fakeProcessor{}, nil, Options{Memory: fakeMemoryGate{paused: paused}}, logging.New(io.Discard, logging.LevelError))

		w := httptest.NewRecorder()
		h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

		var health HealthResponse
		if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
			t.Fatalf("decode healthz: %v", err)
		}
		if health.MemoryPaused != paused {
			t.Errorf("memoryPaused = %v, want %v", health.MemoryPaused, paused)
		}
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200 regardless of memory pressure", w.Code)
		}
	}
}

func TestLivenessCheck(t *testing.T) {
	h := newTestHandlers(&fakeProcessor{}, fakeReadiness{closed: true})

	w := httptest.NewRecorder()
	h.LivenessCheck(w, httptest.NewRequest(http.MethodGet, "/livez", http.NoBody))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 even while draining", w.Code)
	}
	if !strings.Contains(w.Body.String(), "alive") {
		t.Errorf("body = %q", w.Body.String())
	}

	w = httptest.NewRecorder()
	h.LivenessCheck(w, httptest.NewRequest(http.MethodHead, "/livez", http.NoBody))
	if w.Body.Len() != 0 {
		t.Errorf("HEAD body = %q", w.Body.String())
	}
}

func TestGetVersion(t *testing.T) {
	h := newTestHandlers(&fakeProcessor{}, nil)

	w := httptest.NewRecorder()
	h.GetVersion(w, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))

	var info startup.BuildInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info != startup.GetBuildInfo() {
		t.Errorf("version = %+v, want %+v", info, startup.GetBuildInfo())
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
}
