package handlers

import (
	"context"
	"net/http"
	"time"

	"bandwidth-proxy/internal/logging"
	"bandwidth-proxy/internal/pipeline"
	"bandwidth-proxy/internal/streaming"
)

// Processor runs one compress request.
type Processor interface {
	Process(ctx context.Context, params pipeline.Params, inbound http.Header) (*pipeline.Response, error)
}

// Readiness reports whether the proxy has stopped accepting upstream work.
// *fetch.PermitPool satisfies it.
type Readiness interface {
	Closed() bool
}

// MemoryGate reports whether transcodes are held back by memory pressure.
// *memory.Monitor satisfies it.
type MemoryGate interface {
	IsPaused() bool
}

// Options configures the handlers.
type Options struct {
	Stream      streaming.Config
	AVIFEnabled bool
	// Memory is optional; when set, /healthz reports memory backpressure
	Memory MemoryGate
}

type Handlers struct {
	pipeline  Processor
	readiness Readiness
	logger    *logging.Logger
	stream    streaming.Config
	avif      bool
	memory    MemoryGate
	startTime time.Time
}

func New(p Processor, readiness Readiness, opts Options, logger *logging.Logger) *Handlers {
	return &Handlers{
		pipeline:  p,
		readiness: readiness,
		logger:    logger,
		stream:    opts.Stream,
		avif:      opts.AVIFEnabled,
		memory:    opts.Memory,
		startTime: time.Now(),
	}
}
