package latency

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWindow_Properties validates the window invariants: bounded growth,
// mean <= max, p95 <= max, FIFO overwrite.
func TestWindow_Properties(t *testing.T) {
	t.Run("BoundedGrowth", func(t *testing.T) {
		w := &Window{}
		for i := 0; i < 500; i++ {
			w.AddSample(float64(i))
			require.LessOrEqual(t, w.Count, len(w.Samples), "i=%d", i)
			require.True(t, w.Index >= 0 && w.Index < len(w.Samples), "i=%d index=%d", i, w.Index)
		}
		assert.Equal(t, len(w.Samples), w.Count)
	})

	t.Run("MeanLessThanOrEqualMax", func(t *testing.T) {
		cases := map[string][]float64{
			"uniform":    {1, 1, 1, 1},
			"increasing": {1, 2, 3, 4, 5},
			"decreasing": {5, 4, 3, 2, 1},
			"spike":      {1, 1, 100, 1, 1},
			"mixed":      {10.5, 20.3, 15.8, 30.2, 5.1},
		}
		for name, samples := range cases {
			t.Run(name, func(t *testing.T) {
				w := &Window{}
				for _, s := range samples {
					w.AddSample(s)
				}
				mean, p95, max := w.GetStats()
				assert.LessOrEqual(t, mean, max)
				assert.LessOrEqual(t, p95, max)
			})
		}
	})

	t.Run("P95AboveMeanForSkewedDistribution", func(t *testing.T) {
		w := &Window{}
		for i := 0; i < 90; i++ {
			w.AddSample(5 + float64(i%10))
		}
		for i := 0; i < 10; i++ {
			w.AddSample(50 + float64(i*5))
		}
		mean, p95, _ := w.GetStats()
		assert.GreaterOrEqual(t, p95, mean)
	})

	t.Run("EmptyWindowReturnsZeros", func(t *testing.T) {
		mean, p95, max := (&Window{}).GetStats()
		assert.Zero(t, mean)
		assert.Zero(t, p95)
		assert.Zero(t, max)
	})

	t.Run("SingleSampleEqualsAllStats", func(t *testing.T) {
		w := &Window{}
		w.AddSample(42.5)
		mean, p95, max := w.GetStats()
		assert.Equal(t, 42.5, mean)
		assert.Equal(t, 42.5, p95)
		assert.Equal(t, 42.5, max)
	})

	t.Run("RingBufferOverwritesOldSamples", func(t *testing.T) {
		w := &Window{}
		for i := 0; i < WindowSize; i++ {
			w.AddSample(1)
		}
		for i := 0; i < WindowSize; i++ {
			w.AddSample(10)
		}
		mean, _, max := w.GetStats()
		assert.Equal(t, 10.0, mean)
		assert.Equal(t, 10.0, max)
	})
}

func TestWindow_ConcurrentAccess(t *testing.T) {
	w := &Window{}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			r := rand.New(rand.NewSource(seed))
			for i := 0; i < 1000; i++ {
				w.AddSample(r.Float64() * 100)
				w.GetStats()
			}
		}(int64(g))
	}
	wg.Wait()

	_, p95, max := w.GetStats()
	assert.LessOrEqual(t, p95, max)
	assert.Equal(t, WindowSize, w.Count)
}
