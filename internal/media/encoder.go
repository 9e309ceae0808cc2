package media

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
)

// Encoder writes pixels to one output format.
type Encoder interface {
	// Format is the tag reported for output of this encoder.
	Format() Format
	Encode(img image.Image, quality int) ([]byte, error)
}

// jpegEncoder encodes baseline JPEG via imaging.
type jpegEncoder struct{}

// NewJPEGEncoder returns the JPEG encoder.
func NewJPEGEncoder() Encoder {
	return jpegEncoder{}
}

func (jpegEncoder) Format() Format {
	return FormatJPEG
}

func (jpegEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flatten(img), imaging.JPEG, imaging.JPEGQuality(clampQuality(quality))); err != nil {
		return nil, &CodecError{Op: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// NewAVIFEncoder returns the AVIF-family encoder. When libvips is not ready
// or a trial AVIF encode fails the returned encoder produces JPEG at the
// same quality and reports FormatJPEG.
func NewAVIFEncoder(vipsReady bool) Encoder {
	return newAVIFEncoder(vipsReady, probeAVIF)
}

func newAVIFEncoder(vipsReady bool, probe func() error) Encoder {
	if vipsReady && probe() == nil {
		return avifEncoder{}
	}
	return NewJPEGEncoder()
}
