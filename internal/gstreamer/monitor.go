package gstreamer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
)

// busPollInterval bounds how long the monitor blocks on the bus, so
// cancellation is observed promptly
const busPollInterval = 50 * time.Millisecond

// BusEvents receives the bus messages the backend cares about.
// Methods are called from the monitor goroutine.
type BusEvents interface {
	// AsyncDone fires when the pipeline finished a PAUSED preroll,
	// either after Load or after a flushing seek
	AsyncDone()
	// Error fires on a pipeline error
	Error(err error, category ErrorCategory)
	// EOS fires at end of stream (a seek landed past the last frame)
	EOS()
}

// MonitorPipelineBus polls the pipeline bus until ctx is cancelled.
func MonitorPipelineBus(ctx context.Context, pipeline *gst.Pipeline, events BusEvents) error {
	if pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gstreamer: context cancelled, stopping bus monitor")
			return nil
		default:
		}

		msg := bus.TimedPop(busPollInterval)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageAsyncDone:
			events.AsyncDone()

		case gst.MessageEOS:
			events.EOS()

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGStreamerError(gerr)
			slog.Warn("gstreamer: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
			)
			events.Error(fmt.Errorf("pipeline error [%s]: %s", category, gerr.Error()), category)

		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				old, new := msg.ParseStateChanged()
				slog.Debug("gstreamer: pipeline state changed", "from", old, "to", new)
			}
		}
	}
}
