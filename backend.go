package trickplay

import (
	"fmt"

	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/gstreamer"
	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/synthetic"
)

// BackendKind selects a built-in Decode Backend
type BackendKind string

const (
	// BackendGStreamer decodes real media with GStreamer (requires the
	// gstreamer1.0 runtime and base/good plugins)
	BackendGStreamer BackendKind = "gstreamer"
	// BackendSynthetic renders a test pattern from synthetic:// descriptors
	BackendSynthetic BackendKind = "synthetic"
)

// NewGStreamerBackend creates a GStreamer Decode Backend.
func NewGStreamerBackend() (Backend, error) {
	return gstreamer.New(), nil
}

// NewSyntheticBackend creates a synthetic Decode Backend.
//
// Descriptors look like synthetic://640x360?duration=60&gop=2; see the
// synthetic package for all parameters.
func NewSyntheticBackend() (Backend, error) {
	return synthetic.New(), nil
}

// FactoryFor returns the Factory for a built-in backend kind.
func FactoryFor(kind BackendKind) (Factory, error) {
	switch kind {
	case BackendGStreamer:
		return NewGStreamerBackend, nil
	case BackendSynthetic:
		return NewSyntheticBackend, nil
	default:
		return nil, fmt.Errorf("trickplay: unknown backend %q (want %s or %s)",
			kind, BackendGStreamer, BackendSynthetic)
	}
}
