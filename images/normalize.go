// ABOUTME: Normalizes contact photos to the JPEG format the appliance accepts
// ABOUTME: Alpha-capable formats are flattened onto a white background
package images

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat is returned for photos that cannot become a JPEG.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// flattened lists the formats converted by compositing over white.
var flattened = map[string]bool{
	"png":  true,
	"gif":  true,
	"webp": true,
}

// ToJPEG returns JPEG bytes for a photo. JPEG input is returned unchanged so
// its length stays comparable with the stored file.
func ToJPEG(data []byte) ([]byte, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	if format == "jpeg" {
		return data, nil
	}
	if !flattened[format] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s photo: %w", format, err)
	}

	bounds := src.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	canvas = imaging.Overlay(canvas, src, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
