// Package metrics exposes extraction engine telemetry as Prometheus
// collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels for ExtractionDuration
const (
	StageLoad    = "load"
	StageRender  = "render"
	StageCapture = "capture"
	StageEncode  = "encode"
	StageStore   = "store"
	StageTotal   = "total"
)

// Metrics groups the engine collectors registered on one registry.
type Metrics struct {
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec
	SessionLoads       prometheus.Counter
	SessionTeardowns   *prometheus.CounterVec
	RenderTimeouts     prometheus.Counter
	CacheEvictions     prometheus.Counter
	BackendErrors      *prometheus.CounterVec
	GateWaiting        prometheus.Gauge
}

// New registers the engine collectors on reg.
//
// A nil reg uses a private registry: collectors still count but are not
// exposed. Each engine should get its own registry or a distinct
// Registerer (e.g. prometheus.WrapRegistererWith labels), since the
// metric names are fixed.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		ExtractionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trickplay_extractions_total",
			Help: "Total number of frame extractions, by result",
		}, []string{"result"}),

		ExtractionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trickplay_extraction_duration_seconds",
			Help:    "Duration of extraction stages",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),

		SessionLoads: f.NewCounter(prometheus.CounterOpts{
			Name: "trickplay_session_loads_total",
			Help: "Total number of media loads (descriptor changes and rebuilds)",
		}),

		SessionTeardowns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trickplay_session_teardowns_total",
			Help: "Total number of decode session teardowns, by reason",
		}, []string{"reason"}),

		RenderTimeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "trickplay_render_timeouts_total",
			Help: "Seeks whose render notification did not arrive in time (non-fatal)",
		}),

		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "trickplay_cache_evictions_total",
			Help: "Total number of cached stills evicted",
		}),

		BackendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trickplay_backend_errors_total",
			Help: "Backend errors surfaced by failed extractions, by category",
		}, []string{"category"}),

		GateWaiting: f.NewGauge(prometheus.GaugeOpts{
			Name: "trickplay_gate_waiting",
			Help: "Extraction calls waiting for the session",
		}),
	}
}
