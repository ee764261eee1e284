package trickplay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/cache"
	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/decode"
	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/dimensions"
	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/encode"
	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/latency"
	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/metrics"
)

// Extractor is the keyframe extraction engine.
//
// It owns one reusable decode session and serializes every extraction
// through a single gate, so calls issued concurrently run one at a time in
// arrival order. Media is loaded on the first call and reloaded only when
// the descriptor changes or a failure tore the session down.
type Extractor struct {
	cfg     Config
	cache   *cache.Cache
	metrics *metrics.Metrics
	session *session

	// gate is a 1-slot semaphore; blocked senders are served FIFO
	gate     chan struct{}
	shutdown chan struct{}
	closed   atomic.Bool
	once     sync.Once

	latency latency.Window

	extractions    atomic.Uint64
	failures       [KindOutputFailed + 1]atomic.Uint64
	renderTimeouts atomic.Uint64
}

// NewExtractor creates an engine with fail-fast validation.
//
// The cache directory is created if missing. No backend is created until
// the first Extract or Warmup.
func NewExtractor(cfg Config, factory Factory) (*Extractor, error) {
	if factory == nil {
		return nil, fmt.Errorf("trickplay: backend factory is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c, err := cache.New(cfg.CacheDir, cfg.CacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("trickplay: %w", err)
	}

	m := metrics.New(cfg.Registerer)
	shutdown := make(chan struct{})

	slog.Info("trickplay: extractor created",
		"cache_dir", c.Dir(),
		"cache_capacity", c.Capacity(),
		"load_timeout", cfg.LoadTimeout,
		"render_timeout", cfg.RenderTimeout,
	)

	return &Extractor{
		cfg:      cfg,
		cache:    c,
		metrics:  m,
		session:  newSession(factory, cfg.LoadTimeout, shutdown, m),
		gate:     make(chan struct{}, 1),
		shutdown: shutdown,
	}, nil
}

// Extract produces one still for req.
//
// The still comes from the keyframe nearest req.Seconds, scaled per the
// width/height policy, JPEG encoded and written to the cache. Errors are
// *Error values; match them by kind with errors.Is.
func (e *Extractor) Extract(ctx context.Context, req ExtractionRequest) (*ExtractionResult, error) {
	start := time.Now()
	traceID := uuid.New().String()

	res, err := e.extract(ctx, req, traceID)

	elapsed := time.Since(start)
	if err != nil {
		kind := KindOf(err)
		if kind > 0 && int(kind) < len(e.failures) {
			e.failures[kind].Add(1)
		}
		e.metrics.ExtractionsTotal.WithLabelValues(kind.String()).Inc()
		if category := decode.CategoryOf(err); category != "" {
			e.metrics.BackendErrors.WithLabelValues(category).Inc()
		}
		slog.Debug("trickplay: extraction failed",
			"descriptor", req.Descriptor,
			"seconds", req.Seconds,
			"trace_id", traceID,
			"error", err,
		)
		return nil, err
	}

	e.extractions.Add(1)
	e.latency.AddSample(float64(elapsed.Microseconds()) / 1000)
	e.metrics.ExtractionsTotal.WithLabelValues("ok").Inc()
	e.metrics.ExtractionDuration.WithLabelValues(metrics.StageTotal).Observe(elapsed.Seconds())

	slog.Debug("trickplay: extracted",
		"descriptor", req.Descriptor,
		"seconds", req.Seconds,
		"actual_seconds", res.ActualSeconds,
		"size", fmt.Sprintf("%dx%d", res.Width, res.Height),
		"reloaded", res.Reloaded,
		"trace_id", traceID,
		"elapsed", elapsed,
	)
	return res, nil
}

func (e *Extractor) extract(ctx context.Context, req ExtractionRequest, traceID string) (*ExtractionResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	reloaded, err := e.session.ensureLoaded(ctx, req.Descriptor)
	if err != nil {
		return nil, err
	}
	backend := e.session.backend

	// Seek and wait for the render notification
	stageStart := time.Now()
	rendered, err := backend.SeekNearest(secondsToDuration(req.Seconds))
	if err != nil {
		e.session.teardown("seek")
		return nil, newError(KindSeekOrRenderFault, "seek", err)
	}
	if err := e.awaitRender(ctx, rendered, req); err != nil {
		return nil, err
	}
	e.observe(metrics.StageRender, stageStart)

	// Capture
	stageStart = time.Now()
	frame, err := backend.Capture()
	if err == nil {
		err = frame.Validate()
	}
	if err != nil {
		e.session.teardown("capture")
		return nil, newError(KindCaptureFailed, "capture", err)
	}
	e.session.recordSurface(frame.Width, frame.Height)
	e.observe(metrics.StageCapture, stageStart)

	width, height, err := dimensions.Resolve(frame.Width, frame.Height, pixelsOrZero(req.Width), pixelsOrZero(req.Height))
	if err != nil {
		e.session.teardown("dimensions")
		if errors.Is(err, dimensions.ErrInvalidSource) {
			return nil, newError(KindCaptureFailed, "dimensions", fmt.Errorf("%w: %w", ErrInvalidDimensions, err))
		}
		return nil, newError(KindInvalidInput, "dimensions", fmt.Errorf("%w: %w", ErrInvalidDimensions, err))
	}

	// Encode; the session is left intact on output failures
	stageStart = time.Now()
	img, err := frame.Image()
	if err != nil {
		return nil, newError(KindOutputFailed, "encode", err)
	}
	scaled, err := encode.Resize(img, width, height)
	if err != nil {
		return nil, newError(KindOutputFailed, "resize", err)
	}
	data, err := encode.JPEG(scaled)
	if err != nil {
		return nil, newError(KindOutputFailed, "encode", err)
	}
	e.observe(metrics.StageEncode, stageStart)

	// Store
	stageStart = time.Now()
	evictedBefore := e.cache.Evicted()
	entry, err := e.cache.Store(data, req.Seconds)
	if err != nil {
		return nil, newError(KindOutputFailed, "store", err)
	}
	if n := e.cache.Evicted() - evictedBefore; n > 0 {
		e.metrics.CacheEvictions.Add(float64(n))
	}
	e.observe(metrics.StageStore, stageStart)

	return &ExtractionResult{
		FileURI:       (&url.URL{Scheme: "file", Path: filepath.ToSlash(entry.Path)}).String(),
		Path:          entry.Path,
		Width:         width,
		Height:        height,
		ActualSeconds: durationToSeconds(frame.Position),
		TraceID:       traceID,
		Reloaded:      reloaded,
	}, nil
}

// awaitRender waits for the render notification of the pending seek.
//
// A timeout is not an error: the backend may suppress the notification
// (end of stream, clamped seek) and the current frame is captured instead.
func (e *Extractor) awaitRender(ctx context.Context, rendered <-chan error, req ExtractionRequest) error {
	timer := time.NewTimer(e.cfg.RenderTimeout)
	defer timer.Stop()

	select {
	case err := <-rendered:
		if err != nil {
			e.session.teardown("render")
			return newError(KindSeekOrRenderFault, "render", err)
		}
		return nil
	case <-timer.C:
		e.renderTimeouts.Add(1)
		e.metrics.RenderTimeouts.Inc()
		slog.Debug("trickplay: no render notification, capturing current frame",
			"descriptor", req.Descriptor,
			"seconds", req.Seconds,
			"timeout", e.cfg.RenderTimeout,
		)
		return nil
	case <-ctx.Done():
		e.session.teardown("cancelled")
		return newError(KindCancelled, "render", ctx.Err())
	case <-e.shutdown:
		e.session.teardown("close")
		return ErrClosed
	}
}

// Warmup loads descriptor ahead of the first extraction.
//
// Subsequent extractions for the same descriptor skip the load.
func (e *Extractor) Warmup(ctx context.Context, descriptor string) error {
	if err := validateDescriptor(descriptor); err != nil {
		return err
	}
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	_, err := e.session.ensureLoaded(ctx, descriptor)
	return err
}

// Close shuts the engine down.
//
// Pending waits resolve with a KindCancelled error, the in-flight
// extraction (if any) is allowed to return, then the decode session is
// released. Later calls fail with ErrClosed. Safe to call multiple times.
func (e *Extractor) Close() error {
	e.once.Do(func() {
		e.closed.Store(true)
		close(e.shutdown)

		// Take the gate for good: nothing runs after Close
		e.gate <- struct{}{}
		e.session.teardown("close")

		slog.Info("trickplay: extractor closed",
			"extractions", e.extractions.Load(),
			"loads", e.session.loads.Load(),
		)
	})
	return nil
}

// Stats returns engine statistics. Thread-safe.
func (e *Extractor) Stats() Stats {
	descriptor, state := e.session.snapshot()
	mean, p95, maxMS := e.latency.GetStats()

	failures := make(map[ErrorKind]uint64)
	for k := KindInvalidInput; k <= KindOutputFailed; k++ {
		if n := e.failures[k].Load(); n > 0 {
			failures[k] = n
		}
	}

	return Stats{
		Extractions:      e.extractions.Load(),
		Failures:         failures,
		Loads:            e.session.loads.Load(),
		Teardowns:        e.session.teardowns.Load(),
		RenderTimeouts:   e.renderTimeouts.Load(),
		CacheEvictions:   e.cache.Evicted(),
		LoadedDescriptor: descriptor,
		State:            state,
		LatencyMeanMS:    mean,
		LatencyP95MS:     p95,
		LatencyMaxMS:     maxMS,
	}
}

// CacheDir returns the directory stills are written to.
func (e *Extractor) CacheDir() string {
	return e.cache.Dir()
}

// PurgeCache removes every cached still. Returns the number removed.
func (e *Extractor) PurgeCache() int {
	return e.cache.Purge()
}

// acquire takes the gate, or fails when ctx ends or the engine closes.
func (e *Extractor) acquire(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.metrics.GateWaiting.Inc()
	defer e.metrics.GateWaiting.Dec()

	select {
	case e.gate <- struct{}{}:
	case <-ctx.Done():
		return newError(KindCancelled, "acquire", ctx.Err())
	case <-e.shutdown:
		return ErrClosed
	}

	// Close may have raced the acquisition
	if e.closed.Load() {
		<-e.gate
		return ErrClosed
	}
	return nil
}

func (e *Extractor) release() {
	<-e.gate
}

func (e *Extractor) observe(stage string, start time.Time) {
	e.metrics.ExtractionDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func validateRequest(req ExtractionRequest) error {
	if err := validateDescriptor(req.Descriptor); err != nil {
		return err
	}
	if math.IsNaN(req.Seconds) || math.IsInf(req.Seconds, 0) || req.Seconds < 0 {
		return newError(KindInvalidInput, "validate",
			fmt.Errorf("invalid position %v (must be finite and >= 0)", req.Seconds))
	}
	return validateTargets(req.Width, req.Height)
}

// validateTargets rejects explicit target dimensions that are not positive.
func validateTargets(width, height *int) error {
	for _, d := range []struct {
		name string
		v    *int
	}{{"width", width}, {"height", height}} {
		if d.v != nil && *d.v <= 0 {
			return newError(KindInvalidInput, "validate",
				fmt.Errorf("%w: %s %d (must be > 0)", ErrInvalidDimensions, d.name, *d.v))
		}
	}
	return nil
}

// validateDescriptor accepts URLs with a scheme and absolute paths.
func validateDescriptor(descriptor string) error {
	if descriptor == "" {
		return newError(KindInvalidInput, "validate", fmt.Errorf("descriptor is required"))
	}
	if filepath.IsAbs(descriptor) {
		return nil
	}
	u, err := url.Parse(descriptor)
	if err != nil {
		return newError(KindInvalidInput, "validate", fmt.Errorf("invalid descriptor %q: %w", descriptor, err))
	}
	if u.Scheme == "" {
		return newError(KindInvalidInput, "validate",
			fmt.Errorf("descriptor %q is neither a URL nor an absolute path", descriptor))
	}
	return nil
}
