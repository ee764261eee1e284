// Package latency keeps a bounded window of latency samples for telemetry.
package latency

import (
	"sort"
	"sync"
)

// WindowSize is the number of samples retained (ring buffer).
const WindowSize = 100

// Window is a fixed-size ring buffer of latency samples in milliseconds.
//
// Thread-safe. The zero value is ready to use.
type Window struct {
	mu      sync.Mutex
	Samples [WindowSize]float64
	Index   int // next write position
	Count   int // valid samples (<= WindowSize)
}

// AddSample records one latency sample, overwriting the oldest when full.
func (w *Window) AddSample(ms float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.Samples[w.Index] = ms
	w.Index = (w.Index + 1) % len(w.Samples)
	if w.Count < len(w.Samples) {
		w.Count++
	}
}

// GetStats returns mean, P95 and max over the retained samples.
//
// An empty window returns zeros.
func (w *Window) GetStats() (mean, p95, max float64) {
	w.mu.Lock()
	n := w.Count
	sorted := make([]float64, n)
	copy(sorted, w.Samples[:n])
	w.mu.Unlock()

	if n == 0 {
		return 0, 0, 0
	}

	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}
	mean = sum / float64(n)
	max = sorted[n-1]

	// Nearest-rank percentile
	idx := (95*n+99)/100 - 1
	if idx < 0 {
		idx = 0
	}
	p95 = sorted[idx]

	return mean, p95, max
}
