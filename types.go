package trickplay

import (
	"math"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/decode"
)

// ExtractionRequest asks for one still from a stream
type ExtractionRequest struct {
	// Descriptor is the media URL or absolute file path (required)
	Descriptor string
	// Seconds is the requested position (>= 0); the still comes from the
	// keyframe nearest to it
	Seconds float64
	// Width of the output in pixels (nil = derive from Height or source).
	// When set it must be positive.
	Width *int
	// Height of the output in pixels (nil = derive from Width or source).
	// When set it must be positive.
	Height *int
}

// Pixels returns a pointer to n, for ExtractionRequest.Width and Height.
func Pixels(n int) *int {
	return &n
}

// pixelsOrZero maps an unset dimension to 0, the "not provided" value of
// the dimension calculator.
func pixelsOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// ExtractionResult describes a still written to the cache
type ExtractionResult struct {
	// FileURI is the file:// URI of the written JPEG
	FileURI string
	// Path is the same file as a filesystem path
	Path string
	// Width of the written image in pixels
	Width int
	// Height of the written image in pixels
	Height int
	// ActualSeconds is the position of the rendered keyframe
	ActualSeconds float64
	// TraceID identifies this extraction in logs
	TraceID string
	// Reloaded is true when this call had to load the media
	Reloaded bool
}

// Stats contains extractor statistics
type Stats struct {
	// Extractions is the number of successful extractions
	Extractions uint64
	// Failures counts failed extractions by kind
	Failures map[ErrorKind]uint64
	// Loads is the number of media loads
	Loads uint64
	// Teardowns is the number of decode session teardowns
	Teardowns uint64
	// RenderTimeouts counts seeks captured without a render notification
	RenderTimeouts uint64
	// CacheEvictions is the number of stills removed from the cache
	CacheEvictions uint64
	// LoadedDescriptor is the media currently loaded ("" if none)
	LoadedDescriptor string
	// State is the decode session state
	State SessionState
	// LatencyMeanMS is the mean end-to-end latency of recent successful extractions
	LatencyMeanMS float64
	// LatencyP95MS is the 95th percentile latency
	LatencyP95MS float64
	// LatencyMaxMS is the maximum latency
	LatencyMaxMS float64
}

// Contract types shared with backend implementations.
type (
	// Backend is the Decode Backend contract; see decode.Backend
	Backend = decode.Backend
	// Factory creates Backend instances
	Factory = decode.Factory
	// QualityPolicy constrains track selection
	QualityPolicy = decode.QualityPolicy
	// RawFrame is a captured RGBA frame
	RawFrame = decode.RawFrame
	// BackendError tags a backend failure with a category
	BackendError = decode.BackendError
)

// ThumbnailPolicy is the track selection policy every session is configured
// with: resolution ceiling 640x640, lowest bitrate.
var ThumbnailPolicy = decode.ThumbnailPolicy

// secondsToDuration saturates at the largest Duration; backends clamp
// positions past the end to the last keyframe.
func secondsToDuration(s float64) time.Duration {
	ns := s * float64(time.Second)
	if ns >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ns)
}

func durationToSeconds(d time.Duration) float64 {
	return d.Seconds()
}
