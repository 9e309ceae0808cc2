package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"bandwidth-proxy/internal/logging"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var errVipsUnavailable = errors.New("libvips not initialized")

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library
// This should be called once at startup. govips panics when vips_init fails
// or the library is too old; that panic is returned as an error.
func InitVips(logger *logging.Logger) (err error) {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("libvips startup: %v", r)
		}
	}()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() so LOG_LEVEL is respected
	var vipsLogLevel vips.LogLevel
	switch logger.Level() {
	case logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
	case logging.LevelInfo:
		vipsLogLevel = vips.LogLevelWarning
	case logging.LevelWarn:
		vipsLogLevel = vips.LogLevelError
	default:
		vipsLogLevel = vips.LogLevelCritical
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch level {
		case vips.LogLevelError, vips.LogLevelCritical:
			logger.Error("[%s] %s", domain, msg)
		case vips.LogLevelWarning:
			logger.Warn("[%s] %s", domain, msg)
		default:
			logger.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	// Encoding runs on our own worker pool, so keep libvips single-threaded per call
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logger.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources
func ShutdownVips(logger *logging.Logger) {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logger.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// AVIFSupported reports whether the running libvips can save AVIF.
func AVIFSupported() bool {
	return probeAVIF() == nil
}

// probeAVIF encodes a 1x1 image through the AVIF saver. libheif builds can
// ship the heif loader without an AV1 encoder, so checking for the loader
// alone is not enough.
func probeAVIF() error {
	if !IsVipsAvailable() {
		return errVipsUnavailable
	}
	_, err := avifEncoder{}.Encode(image.NewNRGBA(image.Rect(0, 0, 1, 1)), 50)
	return err
}

// avifEncoder encodes through libvips (libheif/aom underneath).
type avifEncoder struct{}

func (avifEncoder) Format() Format {
	return FormatAVIF
}

// Encode hands the pixels to libvips as an uncompressed PNG, then exports AVIF.
func (avifEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var staging bytes.Buffer
	if err := imaging.Encode(&staging, img, imaging.PNG, imaging.PNGCompressionLevel(png.NoCompression)); err != nil {
		return nil, &CodecError{Op: "encode", Err: fmt.Errorf("staging png: %w", err)}
	}

	ref, err := vips.NewImageFromBuffer(staging.Bytes())
	if err != nil {
		return nil, &CodecError{Op: "encode", Err: fmt.Errorf("vips load: %w", err)}
	}
	defer ref.Close()

	params := vips.NewAvifExportParams()
	params.Quality = clampQuality(quality)
	params.StripMetadata = true

	out, _, err := ref.ExportAvif(params)
	if err != nil {
		return nil, &CodecError{Op: "encode", Err: fmt.Errorf("vips avif export: %w", err)}
	}
	return out, nil
}
