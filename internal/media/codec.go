package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/tiff" // TIFF format support
	_ "golang.org/x/image/webp" // WebP format support
)

// Format is an output container tag.
type Format string

const (
	// FormatAVIF is the AVIF family output
	FormatAVIF Format = "avif"
	// FormatJPEG is baseline JPEG output
	FormatJPEG Format = "jpeg"
	// FormatOriginal marks upstream bytes returned unchanged
	FormatOriginal Format = "original"
)

// MaxImagePixels is the maximum total pixels (width * height) we'll decode.
// A 50MP RGBA frame is ~200MB before resizing.
const MaxImagePixels = 50_000_000

// ErrImageTooLarge is returned for images whose pixel count exceeds MaxImagePixels.
var ErrImageTooLarge = errors.New("image exceeds pixel limit")

// CodecError reports a decode or encode failure.
type CodecError struct {
	Op  string // "decode" or "encode"
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec %s: %v", e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// Decoded is a decoded source image.
type Decoded struct {
	Image image.Image
	// SourceFormat is the sniffed container name, e.g. "png"
	SourceFormat string
}

// Decode sniffs the container from the bytes, checks the pixel budget and
// decodes with EXIF auto-orientation.
func Decode(data []byte) (*Decoded, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &CodecError{Op: "decode", Err: err}
	}
	if cfg.Width*cfg.Height > MaxImagePixels {
		return nil, &CodecError{Op: "decode", Err: fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &CodecError{Op: "decode", Err: err}
	}

	return &Decoded{Image: img, SourceFormat: format}, nil
}

// Resize scales img to exactly width x height with a Lanczos filter.
func Resize(img image.Image, width, height int) image.Image {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// Grayscale desaturates img and packs it into a single-channel image so
// encoders write one component.
func Grayscale(img image.Image) *image.Gray {
	desat := imaging.Grayscale(img)
	b := desat.Bounds()
	gray := image.NewGray(b)

	w := b.Dx()
	for y := 0; y < b.Dy(); y++ {
		src := desat.Pix[y*desat.Stride : y*desat.Stride+w*4]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+w]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return gray
}

// flatten composites img over white when it carries transparency.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
