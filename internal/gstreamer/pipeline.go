package gstreamer

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// lowestConnectionSpeed is the bitrate hint (kbps) that makes adaptive
// demuxers (HLS/DASH) pick their lowest variant.
const lowestConnectionSpeed = uint64(1)

// PipelineConfig contains configuration for GStreamer pipeline creation
type PipelineConfig struct {
	URI           string
	MaxWidth      int
	MaxHeight     int
	LowestBitrate bool
}

// PipelineElements holds references to GStreamer pipeline elements
// needed for seeking, capture and cleanup
type PipelineElements struct {
	Pipeline  *gst.Pipeline
	Source    *gst.Element
	Converter *gst.Element
	AppSink   *app.Sink
}

// CreatePipeline creates a GStreamer pipeline that prerolls still frames
//
// Pipeline structure:
//
//	uridecodebin → videoconvert → videoscale → capsfilter(RGBA, ceiling) → appsink
//
// uridecodebin has dynamic pads; the caller links them with OnPadAdded.
// The capsfilter bounds width/height to the policy ceiling with square
// pixels, and videoscale fixates a size that keeps the display aspect ratio.
//
// The pipeline is configured but NOT started (state remains NULL).
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	source, err := gst.NewElement("uridecodebin")
	if err != nil {
		return nil, fmt.Errorf("failed to create uridecodebin: %w", err)
	}
	if err := source.SetProperty("uri", cfg.URI); err != nil {
		return nil, fmt.Errorf("failed to set uri: %w", err)
	}
	if cfg.LowestBitrate {
		// Track selection hint, not every source honours it
		if err := source.SetProperty("connection-speed", lowestConnectionSpeed); err != nil {
			slog.Debug("gstreamer: connection-speed not supported", "error", err)
		}
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", uint(0)) // 0 = auto-detect cores

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsStr := buildFrameCaps(cfg.MaxWidth, cfg.MaxHeight)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // Stills only, no clock sync
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames

	pipeline.AddMany(source, converter, scaler, capsfilter, appsink.Element)

	// Link static elements (uridecodebin is linked in pad-added callback)
	if err := gst.ElementLinkMany(converter, scaler, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Debug("gstreamer: pipeline created",
		"uri", cfg.URI,
		"caps", capsStr,
		"lowest_bitrate", cfg.LowestBitrate,
	)

	return &PipelineElements{
		Pipeline:  pipeline,
		Source:    source,
		Converter: converter,
		AppSink:   appsink,
	}, nil
}

// DestroyPipeline cleans up GStreamer pipeline resources
//
// Sets pipeline state to NULL and releases all resources.
// Safe to call even if pipeline is already destroyed.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}

	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}

	return nil
}

// buildFrameCaps builds the RGBA caps string with an optional size ceiling
//
// Format: "video/x-raw,format=RGBA,pixel-aspect-ratio=1/1[,width=[1,W]][,height=[1,H]]"
func buildFrameCaps(maxWidth, maxHeight int) string {
	var b strings.Builder
	b.WriteString("video/x-raw,format=RGBA,pixel-aspect-ratio=1/1")
	if maxWidth > 0 {
		fmt.Fprintf(&b, ",width=[1,%d]", maxWidth)
	}
	if maxHeight > 0 {
		fmt.Fprintf(&b, ",height=[1,%d]", maxHeight)
	}
	return b.String()
}
