// Package gstreamer implements the Decode Backend on top of GStreamer.
//
// Each loaded descriptor gets its own PAUSED pipeline. Seeks are flushing
// key-unit seeks snapped to the nearest keyframe; the appsink preroll of
// the landed frame is the render notification. Nothing is ever played.
package gstreamer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/decode"
)

// seekFlags requests a flushing seek that lands on the keyframe nearest
// the target, so no inter-frame decoding is needed.
const seekFlags = gst.SeekFlagFlush | gst.SeekFlagKeyUnit | gst.SeekFlagSnapNearest

var (
	errNotLoaded = errors.New("gstreamer: no media loaded")
	errReleased  = errors.New("gstreamer: backend released")
)

// Backend drives one GStreamer pipeline for still extraction. Thread-safe.
type Backend struct {
	id string

	mu        sync.Mutex
	policy    decode.QualityPolicy
	elements  *PipelineElements
	gen       uint64 // bumped on every pipeline swap; stale callbacks compare against it
	loaded    bool
	loadCh    chan error
	renderCh  chan error
	requested time.Duration
	last      *Frame
	lastErr   error
	cancel    context.CancelFunc
	done      chan struct{}
	released  bool
}

// New creates an idle backend. No pipeline exists until Load.
func New() *Backend {
	return &Backend{id: uuid.New().String()}
}

// Factory adapts New to decode.Factory.
func Factory() (decode.Backend, error) {
	return New(), nil
}

// Configure stores the quality policy for pipelines created by later Loads.
func (b *Backend) Configure(policy decode.QualityPolicy) error {
	if policy.MaxWidth < 0 || policy.MaxHeight < 0 {
		return fmt.Errorf("gstreamer: invalid policy ceiling %dx%d", policy.MaxWidth, policy.MaxHeight)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.policy = policy
	return nil
}

// Load builds a pipeline for descriptor and starts prerolling it.
//
// The returned channel receives nil on ASYNC_DONE or the first pipeline
// error. A source that never prerolls never signals.
func (b *Backend) Load(descriptor string) (<-chan error, error) {
	if err := b.Reset(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return nil, errReleased
	}
	policy := b.policy
	b.mu.Unlock()

	uri := toURI(descriptor)
	elements, err := CreatePipeline(PipelineConfig{
		URI:           uri,
		MaxWidth:      policy.MaxWidth,
		MaxHeight:     policy.MaxHeight,
		LowestBitrate: policy.LowestBitrate,
	})
	if err != nil {
		return nil, fmt.Errorf("gstreamer: %w", err)
	}

	ch := make(chan error, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	b.mu.Lock()
	b.gen++
	gen := b.gen
	b.elements = elements
	b.loadCh = ch
	b.cancel = cancel
	b.done = done
	b.mu.Unlock()

	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewPrerollFunc: func(sink *app.Sink) gst.FlowReturn {
			return b.onPreroll(gen, sink)
		},
	})
	elements.Source.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		OnPadAdded(srcPad, elements.Converter)
	})

	go func() {
		defer close(done)
		if err := MonitorPipelineBus(ctx, elements.Pipeline, &busEvents{b: b, gen: gen}); err != nil {
			slog.Error("gstreamer: bus monitor failed", "backend", b.id, "error", err)
		}
	}()

	// State changes must not hold b.mu: preroll callbacks take it from the
	// streaming thread.
	if err := elements.Pipeline.SetState(gst.StatePaused); err != nil {
		b.Reset()
		return nil, fmt.Errorf("gstreamer: failed to pause pipeline for %s: %w", uri, err)
	}

	slog.Debug("gstreamer: loading", "backend", b.id, "uri", uri)
	return ch, nil
}

// Reset tears the current pipeline down. Safe when nothing is loaded.
func (b *Backend) Reset() error {
	b.mu.Lock()
	elements, cancel, done := b.elements, b.cancel, b.done
	b.gen++
	b.elements = nil
	b.cancel = nil
	b.done = nil
	b.loaded = false
	b.loadCh = nil
	b.renderCh = nil
	b.last = nil
	b.lastErr = nil
	b.mu.Unlock()

	if elements == nil {
		return nil
	}

	err := DestroyPipeline(elements)
	cancel()
	<-done
	if err != nil {
		return fmt.Errorf("gstreamer: %w", err)
	}
	return nil
}

// SeekNearest issues a flushing key-unit seek toward pos.
//
// The returned channel receives nil once the landed frame is prerolled, or
// the first pipeline error. A seek past the end posts EOS instead and the
// channel never fires.
func (b *Backend) SeekNearest(pos time.Duration) (<-chan error, error) {
	b.mu.Lock()
	if b.elements == nil || !b.loaded {
		b.mu.Unlock()
		return nil, errNotLoaded
	}
	pipeline := b.elements.Pipeline
	ch := make(chan error, 1)
	b.renderCh = ch
	b.requested = pos
	b.lastErr = nil
	b.mu.Unlock()

	if !pipeline.SeekSimple(int64(pos), gst.FormatTime, seekFlags) {
		b.mu.Lock()
		if b.renderCh == ch {
			b.renderCh = nil
		}
		b.mu.Unlock()
		return nil, fmt.Errorf("gstreamer: seek to %v rejected", pos)
	}
	return ch, nil
}

// Capture returns the most recently prerolled frame.
func (b *Backend) Capture() (*decode.RawFrame, error) {
	b.mu.Lock()
	if b.elements == nil || !b.loaded {
		b.mu.Unlock()
		return nil, errNotLoaded
	}
	if b.lastErr != nil {
		err := b.lastErr
		b.mu.Unlock()
		return nil, err
	}
	frame := b.last
	pipeline := b.elements.Pipeline
	requested := b.requested
	b.mu.Unlock()

	if frame == nil {
		return nil, fmt.Errorf("gstreamer: no frame prerolled")
	}

	return &decode.RawFrame{
		Pix:      frame.Pix,
		Width:    frame.Width,
		Height:   frame.Height,
		Stride:   frame.Stride,
		Position: framePosition(frame, pipeline, requested),
	}, nil
}

// framePosition is the timestamp of the captured frame itself. After a
// render timeout the pipeline position already points at the new seek
// while the frame is still the previous preroll, so the buffer PTS wins.
func framePosition(frame *Frame, pipeline *gst.Pipeline, requested time.Duration) time.Duration {
	if frame.HasPosition {
		return frame.Position
	}
	if pipeline != nil {
		if ok, ns := pipeline.QueryPosition(gst.FormatTime); ok && ns >= 0 {
			return time.Duration(ns)
		}
	}
	return requested
}

// Release tears down the pipeline and rejects later Loads. Idempotent.
func (b *Backend) Release() error {
	err := b.Reset()
	b.mu.Lock()
	b.released = true
	b.mu.Unlock()
	return err
}

// onPreroll runs on the streaming thread for every prerolled frame.
func (b *Backend) onPreroll(gen uint64, sink *app.Sink) gst.FlowReturn {
	frame, err := PullPrerollFrame(sink)
	b.storeFrame(gen, frame, err)
	return gst.FlowOK
}

// storeFrame makes frame the capture candidate of generation gen and
// resolves the pending render notification.
func (b *Backend) storeFrame(gen uint64, frame *Frame, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen {
		return
	}
	if err != nil {
		slog.Warn("gstreamer: preroll failed", "backend", b.id, "error", err)
		b.lastErr = fmt.Errorf("gstreamer: %w", err)
		resolve(&b.renderCh, b.lastErr)
		return
	}

	b.last = frame
	b.lastErr = nil
	resolve(&b.renderCh, nil)
}

// resolve delivers err on *ch at most once.
func resolve(ch *chan error, err error) {
	if *ch == nil {
		return
	}
	*ch <- err
	*ch = nil
}

// busEvents routes bus messages of one pipeline generation to the backend.
type busEvents struct {
	b   *Backend
	gen uint64
}

func (e *busEvents) AsyncDone() {
	b := e.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if e.gen != b.gen || b.loadCh == nil {
		return
	}
	b.loaded = true
	resolve(&b.loadCh, nil)
}

func (e *busEvents) Error(err error, category ErrorCategory) {
	err = &decode.BackendError{Category: category.String(), Err: err}
	b := e.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if e.gen != b.gen {
		return
	}
	switch {
	case b.loadCh != nil:
		resolve(&b.loadCh, err)
	case b.renderCh != nil:
		resolve(&b.renderCh, err)
	default:
		b.lastErr = err
	}
}

func (e *busEvents) EOS() {
	slog.Debug("gstreamer: end of stream after seek", "backend", e.b.id)
}

// toURI turns bare filesystem paths into file:// URIs; anything with a
// scheme passes through.
func toURI(descriptor string) string {
	if strings.Contains(descriptor, "://") {
		return descriptor
	}
	if abs, err := filepath.Abs(descriptor); err == nil {
		descriptor = abs
	}
	return "file://" + filepath.ToSlash(descriptor)
}
