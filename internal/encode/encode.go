// Package encode turns captured frames into compressed stills.
package encode

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// JPEGQuality is the fixed compression quality for extracted stills.
const JPEGQuality = 80

// Resize scales img to width x height with a Lanczos filter.
//
// Returns img unchanged when it already has the requested size.
func Resize(img image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resize target %dx%d", width, height)
	}
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img, nil
	}
	return imaging.Resize(img, width, height, imaging.Lanczos), nil
}

// JPEG encodes img at JPEGQuality.
func JPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("jpeg encode failed: %w", err)
	}
	return buf.Bytes(), nil
}
