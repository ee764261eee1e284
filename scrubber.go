package trickplay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ScrubResult is delivered to the Scrubber callback for every extraction it runs
type ScrubResult struct {
	// Seconds is the requested position
	Seconds float64
	// Result is the produced still (nil on error)
	Result *ExtractionResult
	// Err is the extraction error, if any
	Err error
}

// ScrubberStats contains scrubber counters
type ScrubberStats struct {
	// Submitted is the number of Seek calls accepted
	Submitted uint64
	// Superseded counts positions overwritten before they were extracted
	Superseded uint64
	// Completed is the number of successful extractions
	Completed uint64
	// Failed is the number of failed extractions
	Failed uint64
}

// Scrubber turns a burst of seek positions into extractions of the latest one.
//
// The Extractor never cancels or coalesces work; a UI dragging a scrub bar
// would otherwise queue every intermediate position. Scrubber keeps a
// single-slot mailbox: Seek overwrites the pending position and one worker
// goroutine extracts whatever is newest when it becomes free.
//
// Thread-safety: all methods are safe for concurrent use. onResult is
// called from the worker goroutine, one call at a time.
type Scrubber struct {
	ex         *Extractor
	descriptor string
	width      *int
	height     *int
	onResult   func(ScrubResult)

	mu         sync.Mutex
	cond       *sync.Cond
	pending    float64
	hasPending bool
	stopped    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	submitted  atomic.Uint64
	superseded atomic.Uint64
	completed  atomic.Uint64
	failed     atomic.Uint64
}

// NewScrubber starts a scrubber extracting width x height stills from
// descriptor. Nil dimensions are derived as in ExtractionRequest.
// onResult may be nil.
func NewScrubber(ex *Extractor, descriptor string, width, height *int, onResult func(ScrubResult)) (*Scrubber, error) {
	if ex == nil {
		return nil, fmt.Errorf("trickplay: extractor is required")
	}
	if err := validateDescriptor(descriptor); err != nil {
		return nil, err
	}
	if err := validateTargets(width, height); err != nil {
		return nil, err
	}
	if onResult == nil {
		onResult = func(ScrubResult) {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scrubber{
		ex:         ex,
		descriptor: descriptor,
		width:      width,
		height:     height,
		onResult:   onResult,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.cond = sync.NewCond(&s.mu)

	s.wg.Add(1)
	go s.loop()

	return s, nil
}

// Seek requests a still at seconds, replacing any position not yet started.
//
// Returns immediately. Fails only after Stop.
func (s *Scrubber) Seek(seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("trickplay: scrubber stopped")
	}

	if s.hasPending {
		s.superseded.Add(1)
	}
	s.pending = seconds
	s.hasPending = true
	s.submitted.Add(1)

	s.cond.Signal()
	return nil
}

// Stop discards the pending position, cancels the in-flight extraction and
// waits for the worker to exit. Idempotent.
func (s *Scrubber) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.hasPending {
		s.hasPending = false
		s.superseded.Add(1)
	}
	s.mu.Unlock()

	s.cancel()
	s.cond.Broadcast()
	s.wg.Wait()
}

// Stats returns scrubber counters.
func (s *Scrubber) Stats() ScrubberStats {
	return ScrubberStats{
		Submitted:  s.submitted.Load(),
		Superseded: s.superseded.Load(),
		Completed:  s.completed.Load(),
		Failed:     s.failed.Load(),
	}
}

func (s *Scrubber) loop() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for !s.hasPending {
			if s.stopped {
				s.mu.Unlock()
				return
			}
			s.cond.Wait()
		}
		seconds := s.pending
		s.hasPending = false
		s.mu.Unlock()

		res, err := s.ex.Extract(s.ctx, ExtractionRequest{
			Descriptor: s.descriptor,
			Seconds:    seconds,
			Width:      s.width,
			Height:     s.height,
		})
		if err != nil {
			s.failed.Add(1)
		} else {
			s.completed.Add(1)
		}
		s.onResult(ScrubResult{Seconds: seconds, Result: res, Err: err})
	}
}
