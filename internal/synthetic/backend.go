// Package synthetic implements a Decode Backend that renders a test
// pattern instead of decoding media.
//
// Descriptors use the synthetic scheme:
//
//	synthetic://640x360?duration=60&gop=2&load_ms=20&render_ms=5
//
// Query parameters:
//   - duration: stream length in seconds (default 60)
//   - gop: keyframe interval in seconds (default 2)
//   - load_ms: simulated load latency (default 20)
//   - render_ms: simulated seek+render latency (default 5)
//   - fail: inject a failure: load, seek, render or capture
//   - stall: never signal: load or render
//
// Seeks snap to the nearest keyframe on the gop grid. Seeking past the
// last keyframe clamps to it and suppresses the render notification, the
// way real decoders behave at end of stream.
package synthetic

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/decode"
)

// Scheme is the descriptor scheme handled by this backend
const Scheme = "synthetic"

// ErrInjected marks failures requested through the fail parameter
var ErrInjected = errors.New("synthetic: injected failure")

// Stream describes a parsed synthetic descriptor.
type Stream struct {
	Width     int
	Height    int
	Duration  time.Duration
	GOP       time.Duration
	LoadLag   time.Duration
	RenderLag time.Duration
	Fail      string
	Stall     string
}

// ParseDescriptor parses a synthetic:// descriptor.
func ParseDescriptor(descriptor string) (Stream, error) {
	u, err := url.Parse(descriptor)
	if err != nil {
		return Stream{}, fmt.Errorf("synthetic: invalid descriptor %q: %w", descriptor, err)
	}
	if u.Scheme != Scheme {
		return Stream{}, fmt.Errorf("synthetic: unsupported scheme %q", u.Scheme)
	}

	s := Stream{
		Width:     640,
		Height:    360,
		Duration:  60 * time.Second,
		GOP:       2 * time.Second,
		LoadLag:   20 * time.Millisecond,
		RenderLag: 5 * time.Millisecond,
	}

	if u.Host != "" {
		w, h, ok := strings.Cut(u.Host, "x")
		if !ok {
			return Stream{}, fmt.Errorf("synthetic: invalid size %q (want WxH)", u.Host)
		}
		if s.Width, err = strconv.Atoi(w); err != nil || s.Width <= 0 {
			return Stream{}, fmt.Errorf("synthetic: invalid width %q", w)
		}
		if s.Height, err = strconv.Atoi(h); err != nil || s.Height <= 0 {
			return Stream{}, fmt.Errorf("synthetic: invalid height %q", h)
		}
	}

	q := u.Query()
	durations := []struct {
		key  string
		dst  *time.Duration
		unit time.Duration
	}{
		{"duration", &s.Duration, time.Second},
		{"gop", &s.GOP, time.Second},
		{"load_ms", &s.LoadLag, time.Millisecond},
		{"render_ms", &s.RenderLag, time.Millisecond},
	}
	for _, d := range durations {
		v := q.Get(d.key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			return Stream{}, fmt.Errorf("synthetic: invalid %s %q", d.key, v)
		}
		*d.dst = time.Duration(f * float64(d.unit))
	}
	if s.GOP <= 0 {
		return Stream{}, fmt.Errorf("synthetic: gop must be positive")
	}

	s.Fail = q.Get("fail")
	s.Stall = q.Get("stall")
	return s, nil
}

// SnapToKeyframe returns the keyframe nearest pos and whether pos was
// clamped to the last keyframe.
func (s Stream) SnapToKeyframe(pos time.Duration) (time.Duration, bool) {
	if pos < 0 {
		pos = 0
	}
	last := (s.Duration / s.GOP) * s.GOP
	if pos > s.Duration {
		return last, true
	}
	k := time.Duration(math.Round(float64(pos)/float64(s.GOP))) * s.GOP
	if k > last {
		k = last
	}
	return k, false
}

// Backend renders synthetic frames. Thread-safe.
type Backend struct {
	id string

	mu       sync.Mutex
	policy   decode.QualityPolicy
	stream   *Stream
	width    int
	height   int
	ready    bool
	position time.Duration
	rendered bool
	timers   []*time.Timer
	released bool
}

// New creates a synthetic backend.
func New() *Backend {
	return &Backend{id: uuid.New().String()}
}

// Factory adapts New to decode.Factory.
func Factory() (decode.Backend, error) {
	return New(), nil
}

// Configure records the quality policy; frames larger than the ceiling are
// scaled down to fit, emulating a lower variant.
func (b *Backend) Configure(policy decode.QualityPolicy) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.policy = policy
	return nil
}

// Load schedules readiness after the stream's load latency.
func (b *Backend) Load(descriptor string) (<-chan error, error) {
	s, err := ParseDescriptor(descriptor)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, fmt.Errorf("synthetic: backend released")
	}

	b.stopTimersLocked()
	b.stream = &s
	b.width, b.height = fitWithin(s.Width, s.Height, b.policy.MaxWidth, b.policy.MaxHeight)
	b.ready = false
	b.rendered = false
	b.position = 0

	ch := make(chan error, 1)
	if s.Stall == "load" {
		return ch, nil
	}

	b.schedule(s.LoadLag, func() {
		if s.Fail == "load" {
			ch <- fmt.Errorf("%w: load %s", ErrInjected, descriptor)
			return
		}
		b.mu.Lock()
		if b.stream == &s {
			b.ready = true
			b.rendered = true // first frame prerolls on load
		}
		b.mu.Unlock()
		ch <- nil
	})

	slog.Debug("synthetic: loading", "backend", b.id, "descriptor", descriptor,
		"size", fmt.Sprintf("%dx%d", b.width, b.height))
	return ch, nil
}

// Reset clears the loaded stream.
func (b *Backend) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimersLocked()
	b.stream = nil
	b.ready = false
	b.rendered = false
	b.position = 0
	return nil
}

// SeekNearest snaps pos to the keyframe grid and schedules the render
// notification.
func (b *Backend) SeekNearest(pos time.Duration) (<-chan error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stream == nil || !b.ready {
		return nil, fmt.Errorf("synthetic: seek without loaded stream")
	}
	s := *b.stream

	if s.Fail == "seek" {
		return nil, fmt.Errorf("%w: seek to %v", ErrInjected, pos)
	}

	ch := make(chan error, 1)

	keyframe, clamped := s.SnapToKeyframe(pos)
	if clamped || s.Stall == "render" {
		// Frame changes silently, no notification
		b.position = keyframe
		b.rendered = true
		return ch, nil
	}

	b.schedule(s.RenderLag, func() {
		if s.Fail == "render" {
			ch <- fmt.Errorf("%w: render at %v", ErrInjected, keyframe)
			return
		}
		b.mu.Lock()
		b.position = keyframe
		b.rendered = true
		b.mu.Unlock()
		ch <- nil
	})
	return ch, nil
}

// Capture renders the test pattern for the current position.
func (b *Backend) Capture() (*decode.RawFrame, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stream == nil || !b.rendered {
		return nil, fmt.Errorf("synthetic: no frame rendered")
	}
	if b.stream.Fail == "capture" {
		return nil, fmt.Errorf("%w: capture", ErrInjected)
	}

	return renderPattern(b.width, b.height, b.position, b.stream.Duration), nil
}

// Release stops pending timers. Idempotent.
func (b *Backend) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopTimersLocked()
	b.stream = nil
	b.released = true
	return nil
}

func (b *Backend) schedule(d time.Duration, fn func()) {
	b.timers = append(b.timers, time.AfterFunc(d, fn))
}

func (b *Backend) stopTimersLocked() {
	for _, t := range b.timers {
		t.Stop()
	}
	b.timers = nil
}

// fitWithin scales w x h down to fit maxW x maxH, preserving aspect ratio.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if maxW > 0 && w > maxW {
		h = h * maxW / w
		w = maxW
	}
	if maxH > 0 && h > maxH {
		w = w * maxH / h
		h = maxH
	}
	return max(w, 1), max(h, 1)
}

// renderPattern draws a gradient with a vertical bar marking pos.
func renderPattern(w, h int, pos, duration time.Duration) *decode.RawFrame {
	stride := w * 4
	pix := make([]byte, stride*h)

	barX := 0
	if duration > 0 {
		barX = int(int64(w-1) * int64(pos) / int64(duration))
	}
	shade := uint8(pos / time.Second)

	for y := 0; y < h; y++ {
		row := pix[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			i := x * 4
			row[i+0] = uint8(x * 255 / max(w-1, 1))
			row[i+1] = uint8(y * 255 / max(h-1, 1))
			row[i+2] = shade
			row[i+3] = 255
			if x >= barX-1 && x <= barX+1 {
				row[i+0], row[i+1], row[i+2] = 255, 255, 255
			}
		}
	}

	return &decode.RawFrame{Pix: pix, Width: w, Height: h, Stride: stride, Position: pos}
}
