package transcoder

import (
	"context"
	"errors"
	"time"

	"bandwidth-proxy/internal/logging"
	"bandwidth-proxy/internal/media"
	"bandwidth-proxy/internal/memory"
	"bandwidth-proxy/internal/metrics"
	"bandwidth-proxy/internal/workers"
)

// Request is one transcode job. It is owned by the calling request.
type Request struct {
	Source       []byte
	WantAVIF     bool
	Grayscale    bool
	Quality      int
	OriginalSize uint64
}

// Outcome is the result of a transcode. len(Data) never exceeds the
// request's OriginalSize.
type Outcome struct {
	Data       []byte
	Format     media.Format
	BytesSaved int64
	Width      int
	Height     int
	// Quality is the quality the encoder was given
	Quality int
}

// Transcoder decodes, resizes and re-encodes images on a worker pool.
type Transcoder struct {
	avif   media.Encoder
	jpeg   media.Encoder
	pool   *workers.Pool
	gate   *memory.Monitor
	limits Limits
	logger *logging.Logger
}

// New creates a Transcoder. avif may be the JPEG fallback returned by
// media.NewAVIFEncoder; gate may be nil to disable memory backpressure.
func New(avif, jpeg media.Encoder, pool *workers.Pool, gate *memory.Monitor, limits Limits, logger *logging.Logger) *Transcoder {
	def := DefaultLimits()
	if limits.MaxWidth <= 0 {
		limits.MaxWidth = def.MaxWidth
	}
	if limits.MaxJPEGHeight <= 0 {
		limits.MaxJPEGHeight = def.MaxJPEGHeight
	}
	if limits.MaxAVIFHeight <= 0 {
		limits.MaxAVIFHeight = def.MaxAVIFHeight
	}
	if limits.GrayQualityMax <= 0 {
		limits.GrayQualityMin = def.GrayQualityMin
		limits.GrayQualityMax = def.GrayQualityMax
	}

	return &Transcoder{
		avif:   avif,
		jpeg:   jpeg,
		pool:   pool,
		gate:   gate,
		limits: limits,
		logger: logger,
	}
}

// Limits returns the transcoder's limits.
func (t *Transcoder) Limits() Limits {
	return t.limits
}

// Transcode runs req on the worker pool. It returns ctx.Err() if the caller
// goes away while waiting for memory or a worker, workers.ErrPoolClosed
// during shutdown, or a *media.CodecError.
func (t *Transcoder) Transcode(ctx context.Context, req Request) (*Outcome, error) {
	if err := t.gate.Wait(ctx); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return workers.Run(ctx, t.pool, func() (*Outcome, error) {
		return t.transcode(req)
	})
}

func (t *Transcoder) transcode(req Request) (*Outcome, error) {
	start := time.Now()

	decoded, err := media.Decode(req.Source)
	if err != nil {
		metrics.TranscodeDecodeByFormat.WithLabelValues("unknown").Inc()
		return nil, err
	}
	metrics.TranscodeDecodeByFormat.WithLabelValues(decoded.SourceFormat).Inc()

	bounds := decoded.Image.Bounds()
	width, height := Plan(bounds.Dx(), bounds.Dy(), t.limits.MaxWidth)
	img := media.Resize(decoded.Image, width, height)
	if req.Grayscale {
		img = media.Grayscale(img)
	}

	quality := t.limits.Quality(req.Quality, req.Grayscale)
	enc := t.encoder(t.limits.SelectFormat(req.WantAVIF, height))
	format := string(enc.Format())

	data, err := enc.Encode(img, quality)
	metrics.TranscodeDuration.WithLabelValues(format).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TranscodesTotal.WithLabelValues(format, "error").Inc()
		var codecErr *media.CodecError
		if !errors.As(err, &codecErr) {
			err = &media.CodecError{Op: "encode", Err: err}
		}
		return nil, err
	}

	if uint64(len(data)) > req.OriginalSize {
		metrics.TranscodesTotal.WithLabelValues(format, "larger").Inc()
		t.logger.Info("bypassed-larger: %s %s > original %s Q: %d",
			format,
			logging.FormatBytes(uint64(len(data))),
			logging.FormatBytes(req.OriginalSize),
			quality,
		)
		return &Outcome{
			Data:    req.Source,
			Format:  media.FormatOriginal,
			Width:   bounds.Dx(),
			Height:  bounds.Dy(),
			Quality: quality,
		}, nil
	}

	saved := int64(req.OriginalSize) - int64(len(data))
	metrics.TranscodesTotal.WithLabelValues(format, "success").Inc()
	metrics.BytesSavedTotal.Add(float64(saved))

	var pct float64
	if req.OriginalSize > 0 {
		pct = float64(saved) * 100 / float64(req.OriginalSize)
	}
	t.logger.Info("compress: %s - S: %s/%.0f%% Q: %d",
		format, logging.FormatBytes(uint64(saved)), pct, quality)

	return &Outcome{
		Data:       data,
		Format:     enc.Format(),
		BytesSaved: saved,
		Width:      width,
		Height:     height,
		Quality:    quality,
	}, nil
}

func (t *Transcoder) encoder(f media.Format) media.Encoder {
	if f == media.FormatAVIF {
		return t.avif
	}
	return t.jpeg
}
