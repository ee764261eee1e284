// Package decode defines the contract between the extraction engine and a
// Decode Backend (the component owning the native decode session and its
// rendering surface).
//
// This package is INTERNAL - clients use the aliases in the parent package.
// Keeping the contract here lets backend implementations under internal/
// satisfy it without importing the parent package (avoids import cycle).
package decode

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// QualityPolicy constrains the track a backend selects from a stream
// descriptor that resolves to several variants.
type QualityPolicy struct {
	// MaxWidth is the resolution ceiling in pixels (0 = unbounded)
	MaxWidth int
	// MaxHeight is the resolution ceiling in pixels (0 = unbounded)
	MaxHeight int
	// LowestBitrate forces the lowest-bitrate variant
	LowestBitrate bool
}

// ThumbnailPolicy is the fixed track selection policy for still extraction.
var ThumbnailPolicy = QualityPolicy{
	MaxWidth:      640,
	MaxHeight:     640,
	LowestBitrate: true,
}

// RawFrame is a captured frame as interleaved RGBA pixels.
type RawFrame struct {
	// Pix holds Height rows of Stride bytes each
	Pix []byte
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Stride is the number of bytes per row (>= Width*4)
	Stride int
	// Position is the stream time of the rendered frame
	Position time.Duration
}

// Validate checks that the buffer can hold Width x Height RGBA pixels.
func (f *RawFrame) Validate() error {
	if f == nil {
		return fmt.Errorf("nil frame")
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if f.Stride < f.Width*4 {
		return fmt.Errorf("invalid stride %d for width %d", f.Stride, f.Width)
	}
	if need := f.Stride*(f.Height-1) + f.Width*4; len(f.Pix) < need {
		return fmt.Errorf("short pixel buffer: got %d bytes, need %d", len(f.Pix), need)
	}
	return nil
}

// Image wraps the frame pixels as an image without copying.
//
// Alpha is assumed opaque (decoders emit 0xFF), so NRGBA and RGBA are
// equivalent for these buffers.
func (f *RawFrame) Image() (*image.NRGBA, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &image.NRGBA{
		Pix:    f.Pix,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}, nil
}

// Backend is the Decode Backend contract.
//
// Implementations are NOT required to be thread-safe: the engine serializes
// every call. Channels returned by Load and SeekNearest deliver at most one
// value and must never block the backend (buffered, size 1).
type Backend interface {
	// Configure applies the track selection policy. Called once after creation.
	Configure(policy QualityPolicy) error

	// Load starts loading descriptor and returns immediately.
	//
	// The returned channel receives nil once the backend is ready to seek,
	// or the backend error that prevented it. It may never receive if the
	// backend stalls; callers bound the wait.
	Load(descriptor string) (<-chan error, error)

	// Reset stops playback and clears any loaded media.
	Reset() error

	// SeekNearest seeks to the keyframe nearest pos (never frame-accurate).
	//
	// The returned channel receives nil when a frame has been rendered, or
	// a backend error raised during the seek. It receives nothing when the
	// backend suppresses the render (end of stream, seek clamping).
	SeekNearest(pos time.Duration) (<-chan error, error)

	// Capture returns a copy of the currently rendered frame.
	Capture() (*RawFrame, error)

	// Release frees the decode session and rendering surface.
	Release() error
}

// Factory creates a new Backend instance.
type Factory func() (Backend, error)

// BackendError is a backend failure tagged with a coarse category
// (e.g. "network", "codec") used for metrics labels.
type BackendError struct {
	Category string
	Err      error
}

func (e *BackendError) Error() string { return e.Err.Error() }

func (e *BackendError) Unwrap() error { return e.Err }

// CategoryOf returns the category of the first BackendError in err's
// chain, or "" if there is none.
func CategoryOf(err error) string {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Category
	}
	return ""
}
