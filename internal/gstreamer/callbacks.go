package gstreamer

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Frame is a copied RGBA preroll buffer
type Frame struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
	// Position is the buffer PTS, valid only when HasPosition is set
	Position    time.Duration
	HasPosition bool
}

// OnPadAdded links the first raw video pad of uridecodebin into the
// converter. Audio and subtitle pads are left unlinked.
func OnPadAdded(srcPad *gst.Pad, sinkElement *gst.Element) {
	caps := srcPad.GetCurrentCaps()
	if caps == nil || !strings.HasPrefix(caps.String(), "video/") {
		slog.Debug("gstreamer: ignoring non-video pad", "pad", srcPad.GetName())
		return
	}

	sinkPad := sinkElement.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("gstreamer: failed to get sink pad from videoconvert")
		return
	}
	if sinkPad.IsLinked() {
		slog.Debug("gstreamer: video already linked, ignoring pad", "pad", srcPad.GetName())
		return
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Error("gstreamer: failed to link pads",
			"src_pad", srcPad.GetName(),
			"sink_pad", sinkPad.GetName(),
			"ret", ret,
		)
		return
	}

	slog.Debug("gstreamer: video pad linked", "src_pad", srcPad.GetName())
}

// PullPrerollFrame pulls the preroll sample and copies its pixels.
//
// The buffer is reused by GStreamer after the callback returns, so the
// data is always copied.
func PullPrerollFrame(sink *app.Sink) (*Frame, error) {
	sample := sink.PullPreroll()
	if sample == nil {
		return nil, fmt.Errorf("no preroll sample")
	}

	width, height, err := sampleSize(sample)
	if err != nil {
		return nil, err
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, fmt.Errorf("preroll sample has no buffer")
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return nil, fmt.Errorf("empty preroll buffer")
	}
	pix := make([]byte, len(data))
	copy(pix, data)
	buffer.Unmap()

	stride := len(pix) / height
	if stride < width*4 {
		return nil, fmt.Errorf("short preroll buffer: %d bytes for %dx%d RGBA", len(pix), width, height)
	}

	frame := &Frame{Pix: pix, Width: width, Height: height, Stride: stride}
	// PTS is negative when unset (GST_CLOCK_TIME_NONE)
	if pts := buffer.PresentationTimestamp(); pts >= 0 {
		frame.Position = pts
		frame.HasPosition = true
	}
	return frame, nil
}

// sampleSize reads width and height from the negotiated sample caps.
func sampleSize(sample *gst.Sample) (int, int, error) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, fmt.Errorf("preroll sample has no caps")
	}
	st := caps.GetStructureAt(0)

	width, err := intField(st, "width")
	if err != nil {
		return 0, 0, err
	}
	height, err := intField(st, "height")
	if err != nil {
		return 0, 0, err
	}
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("invalid caps size %dx%d", width, height)
	}
	return width, height, nil
}

func intField(st *gst.Structure, name string) (int, error) {
	v, err := st.GetValue(name)
	if err != nil {
		return 0, fmt.Errorf("caps field %s: %w", name, err)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	default:
		return 0, fmt.Errorf("caps field %s has type %T", name, v)
	}
}
