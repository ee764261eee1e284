package trickplay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrubber_LatestWins(t *testing.T) {
	hold := make(chan struct{})
	factory := &fakeFactory{script: fakeScript{captureHold: hold}}
	ex := newTestExtractor(t, testConfig(t), factory)

	results := make(chan ScrubResult, 8)
	s, err := NewScrubber(ex, testDescriptor, Pixels(160), nil, func(r ScrubResult) { results <- r })
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.Seek(1))

	// First extraction is now blocked inside Capture
	require.Eventually(t, func() bool {
		b := factory.last()
		return b != nil && len(b.captureEntered) > 0
	}, time.Second, time.Millisecond)

	for _, pos := range []float64{2, 3, 4} {
		require.NoError(t, s.Seek(pos))
	}
	close(hold)

	var got []float64
	for len(got) < 2 {
		select {
		case r := <-results:
			require.NoError(t, r.Err)
			assert.Equal(t, 160, r.Result.Width)
			assert.Equal(t, 90, r.Result.Height)
			got = append(got, r.Seconds)
		case <-time.After(2 * time.Second):
			t.Fatalf("missing scrub results, got %v", got)
		}
	}
	assert.Equal(t, []float64{1, 4}, got)

	stats := s.Stats()
	assert.Equal(t, uint64(4), stats.Submitted)
	assert.Equal(t, uint64(2), stats.Superseded)
	assert.Equal(t, uint64(2), stats.Completed)
	assert.Equal(t, uint64(0), stats.Failed)
}

func TestScrubber_ReportsFailures(t *testing.T) {
	factory := &fakeFactory{script: fakeScript{captureErr: errFake}}
	ex := newTestExtractor(t, testConfig(t), factory)

	results := make(chan ScrubResult, 1)
	s, err := NewScrubber(ex, testDescriptor, nil, nil, func(r ScrubResult) { results <- r })
	require.NoError(t, err)
	defer s.Stop()

	require.NoError(t, s.Seek(3))
	select {
	case r := <-results:
		assert.ErrorIs(t, r.Err, KindCaptureFailed)
		assert.Nil(t, r.Result)
	case <-time.After(2 * time.Second):
		t.Fatal("no scrub result")
	}
	assert.Eventually(t, func() bool { return s.Stats().Failed == 1 }, time.Second, time.Millisecond)
}

func TestScrubber_Stop(t *testing.T) {
	factory := &fakeFactory{script: fakeScript{renderSilent: true}}
	cfg := testConfig(t)
	cfg.RenderTimeout = 10 * time.Second
	ex := newTestExtractor(t, cfg, factory)

	results := make(chan ScrubResult, 4)
	s, err := NewScrubber(ex, testDescriptor, nil, nil, func(r ScrubResult) { results <- r })
	require.NoError(t, err)

	require.NoError(t, s.Seek(1))
	require.Eventually(t, func() bool { return factory.totalLoads() == 1 }, time.Second, time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the in-flight extraction")
	}

	r := <-results
	assert.ErrorIs(t, r.Err, KindCancelled)
	assert.ErrorIs(t, r.Err, context.Canceled)

	assert.Error(t, s.Seek(2), "Seek after Stop")
	s.Stop()
}

func TestNewScrubber_Validation(t *testing.T) {
	ex := newTestExtractor(t, testConfig(t), &fakeFactory{})

	_, err := NewScrubber(nil, testDescriptor, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewScrubber(ex, "", nil, nil, nil)
	assert.ErrorIs(t, err, KindInvalidInput)
	_, err = NewScrubber(ex, testDescriptor, Pixels(-1), nil, nil)
	assert.ErrorIs(t, err, KindInvalidInput)
	_, err = NewScrubber(ex, testDescriptor, nil, Pixels(0), nil)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	s, err := NewScrubber(ex, testDescriptor, nil, nil, nil)
	require.NoError(t, err)
	s.Stop()
}
