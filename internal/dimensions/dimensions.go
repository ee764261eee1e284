// Package dimensions resolves output image dimensions under the
// aspect-ratio policy used for extracted stills.
package dimensions

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTarget is returned for negative target dimensions
	ErrInvalidTarget = errors.New("target dimensions must be positive")
	// ErrInvalidSource is returned for non-positive source dimensions
	ErrInvalidSource = errors.New("source dimensions must be positive")
)

// Resolve computes the output size for a source of srcW x srcH pixels.
//
// A target of 0 means "not provided":
//   - both targets given: returned verbatim (aspect ratio may be distorted)
//   - only width: height = trunc(targetW * srcH / srcW)
//   - only height: width = trunc(targetH * srcW / srcH)
//   - neither: source size
//
// Division truncates toward zero. A derived side that truncates to 0 is
// clamped to 1 pixel.
//
// Example (640x360 source):
//
//	Resolve(640, 360, 90, 0)   // 90, 50  (50.625 truncated)
//	Resolve(640, 360, 0, 160)  // 284, 160 (284.44 truncated)
//	Resolve(640, 360, 90, 160) // 90, 160
func Resolve(srcW, srcH, targetW, targetH int) (int, int, error) {
	if srcW <= 0 || srcH <= 0 {
		return 0, 0, fmt.Errorf("%w: got %dx%d", ErrInvalidSource, srcW, srcH)
	}
	if targetW < 0 || targetH < 0 {
		return 0, 0, fmt.Errorf("%w: got %dx%d", ErrInvalidTarget, targetW, targetH)
	}

	switch {
	case targetW > 0 && targetH > 0:
		return targetW, targetH, nil
	case targetW > 0:
		return targetW, scale(targetW, srcH, srcW), nil
	case targetH > 0:
		return scale(targetH, srcW, srcH), targetH, nil
	default:
		return srcW, srcH, nil
	}
}

// scale returns trunc(a * b / c) using int64 intermediates, never below 1.
func scale(a, b, c int) int {
	v := int(int64(a) * int64(b) / int64(c))
	if v < 1 {
		return 1
	}
	return v
}
