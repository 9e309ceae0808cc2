package transcoder

import (
	"math"

	"bandwidth-proxy/internal/media"
)

// Default codec limits
const (
	DefaultMaxWidth       = 400
	MaxJPEGHeight         = 32767
	MaxAVIFHeight         = 16383
	DefaultGrayQualityMin = 10
	DefaultGrayQualityMax = 40
)

// Limits bounds output dimensions and grayscale quality.
type Limits struct {
	MaxWidth       int
	MaxJPEGHeight  int
	MaxAVIFHeight  int
	GrayQualityMin int
	GrayQualityMax int
}

// DefaultLimits returns the default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxWidth:       DefaultMaxWidth,
		MaxJPEGHeight:  MaxJPEGHeight,
		MaxAVIFHeight:  MaxAVIFHeight,
		GrayQualityMin: DefaultGrayQualityMin,
		GrayQualityMax: DefaultGrayQualityMax,
	}
}

// Plan returns the output dimensions for an origW x origH source. Sources no
// wider than maxW are left alone; wider ones are scaled to maxW with each
// dimension rounded on its own, so the aspect ratio may drift by a pixel.
func Plan(origW, origH, maxW int) (int, int) {
	if origW <= maxW || origW <= 0 {
		return origW, origH
	}
	scale := float64(maxW) / float64(origW)
	w := int(math.Round(float64(origW) * scale))
	h := int(math.Round(float64(origH) * scale))
	if h < 1 {
		h = 1
	}
	return w, h
}

// SelectFormat picks the output format for a scaled height using the
// default limits.
func SelectFormat(wantAVIF bool, height int) media.Format {
	return DefaultLimits().SelectFormat(wantAVIF, height)
}

// SelectFormat picks the output format for a scaled height. The JPEG
// ceiling is checked first so it holds whatever was requested.
func (l Limits) SelectFormat(wantAVIF bool, height int) media.Format {
	switch {
	case height > l.MaxJPEGHeight:
		return media.FormatJPEG
	case wantAVIF && height > l.MaxAVIFHeight:
		return media.FormatJPEG
	case wantAVIF:
		return media.FormatAVIF
	default:
		return media.FormatJPEG
	}
}

// Quality returns the encoder quality for a request. Grayscale output is
// clamped into [GrayQualityMin, GrayQualityMax].
func (l Limits) Quality(requested int, grayscale bool) int {
	if !grayscale {
		return requested
	}
	if requested < l.GrayQualityMin {
		return l.GrayQualityMin
	}
	if requested > l.GrayQualityMax {
		return l.GrayQualityMax
	}
	return requested
}
