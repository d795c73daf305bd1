// Package imagecodec selects an output image codec for SelectionPipeline's
// emitted frames, mirroring the teacher's format-switch Encoder
// constructor (internal/encode.NewEncoder) but as a self-contained
// Encode/Decode pair rather than a stateful Encoder interface, since the
// pipeline never needs per-format configuration beyond quality.
package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/webp"
)

// Format is an output image format name.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
)

// FileExtension returns the canonical extension for f.
func (f Format) FileExtension() string {
	switch f {
	case JPEG:
		return ".jpg"
	case PNG:
		return ".png"
	case WebP:
		return ".webp"
	default:
		return ""
	}
}

// Encode encodes img in the given format. quality is honored by JPEG and
// WebP (1-100) and ignored by PNG.
func Encode(img image.Image, format Format, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = 85
	}
	var buf bytes.Buffer
	switch format {
	case JPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("imagecodec: encoding jpeg: %w", err)
		}
	case PNG:
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("imagecodec: encoding png: %w", err)
		}
	case WebP:
		if err := webp.Encode(&buf, img, webp.Options{Quality: float32(quality)}); err != nil {
			return nil, fmt.Errorf("imagecodec: encoding webp: %w", err)
		}
	default:
		return nil, fmt.Errorf("imagecodec: unsupported format %q", format)
	}
	return buf.Bytes(), nil
}

// Decode decodes image bytes previously produced by Encode in the given
// format.
func Decode(data []byte, format Format) (image.Image, error) {
	r := bytes.NewReader(data)
	switch format {
	case JPEG:
		return jpeg.Decode(r)
	case PNG:
		return png.Decode(r)
	case WebP:
		return webp.Decode(r)
	default:
		return nil, fmt.Errorf("imagecodec: unsupported format %q", format)
	}
}
