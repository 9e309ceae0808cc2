package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.WriteTimeout != 15*time.Second {
		t.Errorf("Expected WriteTimeout=15s, got %v", cfg.WriteTimeout)
	}
	if cfg.ChunkSize != 32*1024 {
		t.Errorf("Expected ChunkSize=32KB, got %d", cfg.ChunkSize)
	}
}

// countingWriter records the size of each Write call.
type countingWriter struct {
	*httptest.ResponseRecorder
	writes []int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.writes = append(c.writes, len(p))
	return c.ResponseRecorder.Write(p)
}

func TestWriteBodyChunks(t *testing.T) {
	body := bytes.Repeat([]byte("x"), 10*1024+17)

	tests := []struct {
		name       string
		chunkSize  int
		wantWrites int
	}{
		{"single write when chunking disabled", 0, 1},
		{"exact chunks plus remainder", 1024, 11},
		{"chunk larger than body", 64 * 1024, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &countingWriter{ResponseRecorder: httptest.NewRecorder()}
			cfg := Config{WriteTimeout: time.Second, ChunkSize: tt.chunkSize}

			n, err := WriteBody(context.Background(), w, body, cfg)
			if err != nil {
				t.Fatalf("WriteBody() error = %v", err)
			}
			if n != int64(len(body)) {
				t.Errorf("WriteBody() = %d bytes, want %d", n, len(body))
			}
			if len(w.writes) != tt.wantWrites {
				t.Errorf("got %d writes, want %d", len(w.writes), tt.wantWrites)
			}
			if !bytes.Equal(w.Body.Bytes(), body) {
				t.Error("body mismatch")
			}
		})
	}
}

func TestWriteBodyEmpty(t *testing.T) {
	w := httptest.NewRecorder()

	n, err := WriteBody(context.Background(), w, nil, DefaultConfig())
	if err != nil {
		t.Fatalf("WriteBody() error = %v", err)
	}
	if n != 0 {
		t.Errorf("WriteBody() = %d, want 0", n)
	}
}

func TestWriteBodyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := httptest.NewRecorder()
	n, err := WriteBody(ctx, w, []byte("payload"), DefaultConfig())

	if !errors.Is(err, ErrClientGone) {
		t.Errorf("WriteBody() error = %v, want ErrClientGone", err)
	}
	if n != 0 {
		t.Errorf("WriteBody() wrote %d bytes after cancellation", n)
	}
}

// failingWriter fails every write after the first.
type failingWriter struct {
	*httptest.ResponseRecorder
	calls int
	err   error
}

func (f *failingWriter) Write(p []byte) (int, error) {
	f.calls++
	if f.calls > 1 {
		return 0, f.err
	}
	return f.ResponseRecorder.Write(p)
}

func TestWriteBodyWriteError(t *testing.T) {
	writeErr := errors.New("broken pipe")
	w := &failingWriter{ResponseRecorder: httptest.NewRecorder(), err: writeErr}

	n, err := WriteBody(context.Background(), w, make([]byte, 100), Config{ChunkSize: 10})
	if !errors.Is(err, writeErr) {
		t.Errorf("WriteBody() error = %v, want %v", err, writeErr)
	}
	if n != 10 {
		t.Errorf("WriteBody() = %d bytes, want 10", n)
	}
}

func TestClassify(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	other := errors.New("other")

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want error
	}{
		{"deadline", context.Background(), os.ErrDeadlineExceeded, ErrWriteTimeout},
		{"cancelled request", cancelled, other, ErrClientGone},
		{"passthrough", context.Background(), other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.ctx, tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteBodyOverRealConnection(t *testing.T) {
	body := bytes.Repeat([]byte("abc"), 50000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := WriteBody(r.Context(), w, body, DefaultConfig()); err != nil {
			t.Errorf("WriteBody() error = %v", err)
		}
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if !bytes.Equal(buf.Bytes(), body) {
		t.Errorf("received %d bytes, want %d", buf.Len(), len(body))
	}
}
