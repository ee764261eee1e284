package trickplay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/metrics"
)

// SessionState is the lifecycle state of the decode session
type SessionState int

const (
	// StateUninitialized: no backend exists
	StateUninitialized SessionState = iota
	// StateCreated: backend exists, no media loaded
	StateCreated
	// StateReady: media loaded and seekable
	StateReady
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateCreated:
		return "created"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// session owns the single decode backend.
//
// Every method except snapshot must be called with the extraction gate held.
type session struct {
	factory     Factory
	loadTimeout time.Duration
	shutdown    <-chan struct{}
	metrics     *metrics.Metrics

	backend       Backend
	surfaceWidth  int
	surfaceHeight int

	// mu guards the fields read by snapshot from outside the gate
	mu               sync.RWMutex
	loadedDescriptor string
	state            SessionState

	loads     atomic.Uint64
	teardowns atomic.Uint64
}

func newSession(factory Factory, loadTimeout time.Duration, shutdown <-chan struct{}, m *metrics.Metrics) *session {
	return &session{
		factory:     factory,
		loadTimeout: loadTimeout,
		shutdown:    shutdown,
		metrics:     m,
	}
}

// ensureLoaded makes descriptor the loaded media, creating the backend on
// first use. It reports whether a load happened.
//
// Any failure tears the session down before returning.
func (s *session) ensureLoaded(ctx context.Context, descriptor string) (bool, error) {
	if s.backend == nil {
		if err := s.create(); err != nil {
			return false, err
		}
	}

	if s.state == StateReady && s.loadedDescriptor == descriptor {
		return false, nil
	}

	start := time.Now()
	s.setState(StateCreated, "")

	if err := s.backend.Reset(); err != nil {
		s.teardown("reset")
		return false, newError(KindLoadFailed, "reset", err)
	}

	s.loads.Add(1)
	s.metrics.SessionLoads.Inc()

	ready, err := s.backend.Load(descriptor)
	if err != nil {
		s.teardown("load")
		return false, newError(KindLoadFailed, "load", err)
	}

	timer := time.NewTimer(s.loadTimeout)
	defer timer.Stop()

	select {
	case err := <-ready:
		if err != nil {
			s.teardown("load")
			return false, newError(KindLoadFailed, "load", err)
		}
	case <-timer.C:
		s.teardown("load-timeout")
		return false, newError(KindLoadFailed, "load",
			fmt.Errorf("media not ready after %v", s.loadTimeout))
	case <-ctx.Done():
		s.teardown("cancelled")
		return false, newError(KindCancelled, "load", ctx.Err())
	case <-s.shutdown:
		s.teardown("close")
		return false, ErrClosed
	}

	elapsed := time.Since(start)
	s.metrics.ExtractionDuration.WithLabelValues(metrics.StageLoad).Observe(elapsed.Seconds())
	s.setState(StateReady, descriptor)

	slog.Info("trickplay: media loaded",
		"descriptor", descriptor,
		"elapsed", elapsed,
	)
	return true, nil
}

// create instantiates and configures the backend.
func (s *session) create() error {
	b, err := s.factory()
	if err != nil {
		return newError(KindLoadFailed, "create", err)
	}
	if b == nil {
		return newError(KindLoadFailed, "create", fmt.Errorf("factory returned nil backend"))
	}
	if err := b.Configure(ThumbnailPolicy); err != nil {
		if rerr := b.Release(); rerr != nil {
			slog.Debug("trickplay: release after configure failure", "error", rerr)
		}
		return newError(KindLoadFailed, "configure", err)
	}

	s.backend = b
	s.setState(StateCreated, "")
	slog.Debug("trickplay: decode session created")
	return nil
}

// teardown releases the backend and forgets the loaded media. Idempotent.
func (s *session) teardown(reason string) {
	if s.backend == nil {
		return
	}

	if err := s.backend.Release(); err != nil {
		slog.Warn("trickplay: backend release failed", "reason", reason, "error", err)
	}

	s.backend = nil
	s.surfaceWidth, s.surfaceHeight = 0, 0
	s.setState(StateUninitialized, "")
	s.teardowns.Add(1)
	s.metrics.SessionTeardowns.WithLabelValues(reason).Inc()

	slog.Debug("trickplay: decode session torn down", "reason", reason)
}

// recordSurface remembers the size of the last captured frame.
func (s *session) recordSurface(width, height int) {
	s.surfaceWidth, s.surfaceHeight = width, height
}

func (s *session) setState(state SessionState, descriptor string) {
	s.mu.Lock()
	s.state = state
	s.loadedDescriptor = descriptor
	s.mu.Unlock()
}

// snapshot returns the loaded descriptor and state. Safe without the gate.
func (s *session) snapshot() (string, SessionState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedDescriptor, s.state
}
