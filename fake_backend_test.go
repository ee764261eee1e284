package trickplay

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var errFake = errors.New("fake backend failure")

// fakeScript controls how fakeBackend behaves. Fields are read on every call,
// so tests may change them between extractions (under fakeBackend.mu).
type fakeScript struct {
	width, height int

	loadErr      error
	loadStall    bool
	seekErr      error
	renderErr    error
	renderSilent bool
	captureErr   error

	// captureHold blocks Capture until closed
	captureHold chan struct{}
	// captureDelay simulates decode work
	captureDelay time.Duration
}

// fakeBackend is a scripted Decode Backend recording every call.
type fakeBackend struct {
	mu     sync.Mutex
	script fakeScript

	configured []QualityPolicy
	loads      []string
	seeks      []time.Duration
	resets     int
	released   int
	position   time.Duration
	// timeline records "seek" and "capture" (on Capture return) in order
	timeline []string

	// loadStarted receives the descriptor of every Load (non-blocking)
	loadStarted chan string
	// captureEntered receives on every Capture start (non-blocking)
	captureEntered chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeBackend(script fakeScript) *fakeBackend {
	if script.width == 0 {
		script.width, script.height = 640, 360
	}
	return &fakeBackend{
		script:         script,
		loadStarted:    make(chan string, 16),
		captureEntered: make(chan struct{}, 16),
	}
}

// fakeFactory hands out fakeBackends built from one script and remembers
// them in creation order.
type fakeFactory struct {
	mu       sync.Mutex
	script   fakeScript
	backends []*fakeBackend
	err      error
}

func (f *fakeFactory) New() (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	b := newFakeBackend(f.script)
	f.backends = append(f.backends, b)
	return b, nil
}

func (f *fakeFactory) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.backends)
}

func (f *fakeFactory) last() *fakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.backends) == 0 {
		return nil
	}
	return f.backends[len(f.backends)-1]
}

// totalLoads counts Load calls across every backend created.
func (f *fakeFactory) totalLoads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.backends {
		b.mu.Lock()
		n += len(b.loads)
		b.mu.Unlock()
	}
	return n
}

func (f *fakeFactory) setScript(fn func(*fakeScript)) {
	f.mu.Lock()
	fn(&f.script)
	for _, b := range f.backends {
		b.mu.Lock()
		fn(&b.script)
		b.mu.Unlock()
	}
	f.mu.Unlock()
}

func (b *fakeBackend) enter() func() {
	n := b.active.Add(1)
	for {
		m := b.maxActive.Load()
		if n <= m || b.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	return func() { b.active.Add(-1) }
}

func (b *fakeBackend) Configure(p QualityPolicy) error {
	defer b.enter()()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.configured = append(b.configured, p)
	return nil
}

func (b *fakeBackend) Load(descriptor string) (<-chan error, error) {
	defer b.enter()()
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loads = append(b.loads, descriptor)
	select {
	case b.loadStarted <- descriptor:
	default:
	}

	ch := make(chan error, 1)
	switch {
	case b.script.loadStall:
	case b.script.loadErr != nil:
		ch <- b.script.loadErr
	default:
		ch <- nil
	}
	return ch, nil
}

func (b *fakeBackend) Reset() error {
	defer b.enter()()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets++
	return nil
}

func (b *fakeBackend) SeekNearest(pos time.Duration) (<-chan error, error) {
	defer b.enter()()
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.script.seekErr != nil {
		return nil, b.script.seekErr
	}
	b.seeks = append(b.seeks, pos)
	b.position = pos
	b.timeline = append(b.timeline, "seek")

	ch := make(chan error, 1)
	switch {
	case b.script.renderSilent:
	case b.script.renderErr != nil:
		ch <- b.script.renderErr
	default:
		ch <- nil
	}
	return ch, nil
}

func (b *fakeBackend) Capture() (*RawFrame, error) {
	defer b.enter()()

	select {
	case b.captureEntered <- struct{}{}:
	default:
	}

	b.mu.Lock()
	hold, delay := b.script.captureHold, b.script.captureDelay
	b.mu.Unlock()
	if hold != nil {
		<-hold
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.timeline = append(b.timeline, "capture")
	if b.script.captureErr != nil {
		return nil, b.script.captureErr
	}
	w, h := b.script.width, b.script.height
	pix := make([]byte, w*h*4)
	for i := 3; i < len(pix); i += 4 {
		pix[i] = 0xFF
	}
	return &RawFrame{Pix: pix, Width: w, Height: h, Stride: w * 4, Position: b.position}, nil
}

func (b *fakeBackend) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.released++
	return nil
}

func (b *fakeBackend) seekCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.seeks)
}

func (b *fakeBackend) events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.timeline...)
}

func (b *fakeBackend) loadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.loads)
}
