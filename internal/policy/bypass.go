package policy

import (
	"mime"
	"strings"
)

// Reason names why a response bypassed transcoding.
type Reason string

const (
	// ReasonNone means the image should be transcoded.
	ReasonNone Reason = ""
	// ReasonAlreadySmall means the body is below the bypass threshold.
	ReasonAlreadySmall Reason = "already_small"
	// ReasonCriteriaNotMet means ShouldCompress rejected the body.
	ReasonCriteriaNotMet Reason = "criteria_not_met"
	// ReasonNonImage means the content type is not image/*.
	ReasonNonImage Reason = "non-image"
)

const (
	// DefaultBypassThreshold is the size below which bodies are returned as-is.
	DefaultBypassThreshold = 10240
	// DefaultMinCompressLength is the smallest body worth transcoding at all.
	DefaultMinCompressLength = 2048
	// DefaultMinTransparentCompressLength is the floor for PNG/GIF when JPEG is forced.
	DefaultMinTransparentCompressLength = 100 * 1024
	// DefaultMaxOriginalSize is the largest body that will be transcoded.
	DefaultMaxOriginalSize = 5 * 1024 * 1024
)

// SupportedTypes are the content types the codec can decode.
var SupportedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

// Config holds the policy thresholds in bytes.
type Config struct {
	BypassThreshold              uint64
	MinCompressLength            uint64
	MinTransparentCompressLength uint64
	MaxOriginalSize              uint64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		BypassThreshold:              DefaultBypassThreshold,
		MinCompressLength:            DefaultMinCompressLength,
		MinTransparentCompressLength: DefaultMinTransparentCompressLength,
		MaxOriginalSize:              DefaultMaxOriginalSize,
	}
}

// Policy is a pure decision function over Config. The zero value is not useful;
// use New.
type Policy struct {
	config Config
}

// New creates a Policy. Zero fields in config fall back to the defaults.
func New(config Config) *Policy {
	def := DefaultConfig()
	if config.BypassThreshold == 0 {
		config.BypassThreshold = def.BypassThreshold
	}
	if config.MinCompressLength == 0 {
		config.MinCompressLength = def.MinCompressLength
	}
	if config.MinTransparentCompressLength == 0 {
		config.MinTransparentCompressLength = def.MinTransparentCompressLength
	}
	if config.MaxOriginalSize == 0 {
		config.MaxOriginalSize = def.MaxOriginalSize
	}
	return &Policy{config: config}
}

// Config returns the thresholds in effect.
func (p *Policy) Config() Config {
	return p.config
}

// ShouldBypass reports whether the body should be returned untouched and why.
// wantsAVIF is true when the client did not force JPEG output.
func (p *Policy) ShouldBypass(contentLength uint64, contentType string, wantsAVIF bool) (Reason, bool) {
	if contentLength < p.config.BypassThreshold {
		return ReasonAlreadySmall, true
	}

	if !p.ShouldCompress(contentType, contentLength, wantsAVIF) {
		return ReasonCriteriaNotMet, true
	}

	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return ReasonNonImage, true
	}

	return ReasonNone, false
}

// ShouldCompress reports whether a body of the given type and size is worth
// transcoding. PNG and GIF need a larger body unless the client accepts the
// AVIF family, which keeps transparency.
func (p *Policy) ShouldCompress(contentType string, size uint64, wantsAVIF bool) bool {
	if contentType == "" {
		return false
	}

	if size > p.config.MaxOriginalSize || size < p.config.MinCompressLength {
		return false
	}

	mediaType := baseMediaType(contentType)
	if !isSupportedType(mediaType) {
		return false
	}

	if wantsAVIF {
		return size >= p.config.MinCompressLength
	}

	if strings.HasSuffix(mediaType, "png") || strings.HasSuffix(mediaType, "gif") {
		return size >= p.config.MinTransparentCompressLength
	}

	return true
}

// baseMediaType strips parameters and lower-cases, e.g. "Image/PNG; q=1" -> "image/png".
func baseMediaType(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

func isSupportedType(mediaType string) bool {
	for _, t := range SupportedTypes {
		if strings.EqualFold(mediaType, t) {
			return true
		}
	}
	return false
}
