package gstreamer

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/trickplay/internal/decode"
)

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		message string
		debug   string
		want    ErrorCategory
	}{
		{"Unauthorized", "souphttpsrc: 401", ErrCategoryAuth},
		{"Not Found", "souphttpsrc returned 404", ErrCategoryNotFound},
		{"Resource not found.", "No such file \"/tmp/x.mp4\"", ErrCategoryNotFound},
		{"Internal data stream error.", "qtdemux: streaming stopped, reason not-negotiated", ErrCategoryCodec},
		{"Your GStreamer installation is missing a plug-in.", "no suitable plugins found", ErrCategoryCodec},
		{"Could not connect to server", "", ErrCategoryNetwork},
		{"Socket I/O timed out", "", ErrCategoryNetwork},
		{"Something odd", "", ErrCategoryUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyMessage(tt.message, tt.debug), tt.message)
	}
}

func TestClassifyGStreamerError_Nil(t *testing.T) {
	assert.Equal(t, ErrCategoryUnknown, ClassifyGStreamerError(nil))
}

func TestErrorCategory_String(t *testing.T) {
	assert.Equal(t, "network", ErrCategoryNetwork.String())
	assert.Equal(t, "not-found", ErrCategoryNotFound.String())
	assert.Equal(t, "codec", ErrCategoryCodec.String())
	assert.Equal(t, "auth", ErrCategoryAuth.String())
	assert.Equal(t, "unknown", ErrorCategory(42).String())
}

func TestBuildFrameCaps(t *testing.T) {
	assert.Equal(t,
		"video/x-raw,format=RGBA,pixel-aspect-ratio=1/1,width=[1,640],height=[1,640]",
		buildFrameCaps(640, 640))
	assert.Equal(t,
		"video/x-raw,format=RGBA,pixel-aspect-ratio=1/1",
		buildFrameCaps(0, 0))
}

func TestToURI(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/v.m3u8", toURI("https://cdn.example.com/v.m3u8"))
	assert.Equal(t, "file:///media/clip.mp4", toURI("/media/clip.mp4"))
}

func TestBackend_SeekWithoutLoad(t *testing.T) {
	b := New()
	_, err := b.SeekNearest(time.Second)
	assert.ErrorIs(t, err, errNotLoaded)
	_, err = b.Capture()
	assert.ErrorIs(t, err, errNotLoaded)
	assert.NoError(t, b.Reset())
	assert.NoError(t, b.Release())
	assert.NoError(t, b.Release())
}

func TestBackend_ConfigureRejectsNegativeCeiling(t *testing.T) {
	assert.Error(t, New().Configure(decode.QualityPolicy{MaxWidth: -1}))
}

// loadedForTest marks b as loaded without building a pipeline, so frames
// can be fed through storeFrame directly.
func loadedForTest(b *Backend) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.elements = &PipelineElements{}
	b.loaded = true
	return b.gen
}

func testFrame(pos time.Duration, hasPos bool) *Frame {
	return &Frame{Pix: make([]byte, 4*2*2), Width: 2, Height: 2, Stride: 8, Position: pos, HasPosition: hasPos}
}

func TestBackend_CaptureReportsPrerolledTimestamp(t *testing.T) {
	b := New()
	gen := loadedForTest(b)

	b.storeFrame(gen, testFrame(2*time.Second, true), nil)

	// A seek toward 10s whose preroll never arrives: the frame on hand is
	// still the 2s one and must be reported as such.
	b.mu.Lock()
	b.requested = 10 * time.Second
	b.mu.Unlock()

	frame, err := b.Capture()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, frame.Position)

	b.storeFrame(gen, testFrame(9*time.Second, true), nil)
	frame, err = b.Capture()
	require.NoError(t, err)
	assert.Equal(t, 9*time.Second, frame.Position)
}

func TestBackend_CaptureFallsBackToRequestedPosition(t *testing.T) {
	b := New()
	gen := loadedForTest(b)

	b.mu.Lock()
	b.requested = 4 * time.Second
	b.mu.Unlock()
	b.storeFrame(gen, testFrame(0, false), nil)

	frame, err := b.Capture()
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, frame.Position)
}

func TestBackend_StaleFramesIgnored(t *testing.T) {
	b := New()
	gen := loadedForTest(b)

	b.storeFrame(gen, testFrame(time.Second, true), nil)
	b.storeFrame(gen-1, testFrame(30*time.Second, true), nil)

	frame, err := b.Capture()
	require.NoError(t, err)
	assert.Equal(t, time.Second, frame.Position)
}

func TestBackend_PrerollErrorFailsCapture(t *testing.T) {
	b := New()
	gen := loadedForTest(b)

	b.storeFrame(gen, testFrame(time.Second, true), nil)
	b.storeFrame(gen, nil, errors.New("not-negotiated"))

	_, err := b.Capture()
	assert.Error(t, err)
}

func TestBusEvents_ErrorCarriesCategory(t *testing.T) {
	b := New()
	gen := loadedForTest(b)

	ch := make(chan error, 1)
	b.mu.Lock()
	b.renderCh = ch
	b.mu.Unlock()

	(&busEvents{b: b, gen: gen}).Error(errors.New("pipeline error [network]: could not connect"), ErrCategoryNetwork)

	err := <-ch
	require.Error(t, err)
	assert.Equal(t, "network", decode.CategoryOf(err))

	// Errors outside any pending wait fail the next capture
	(&busEvents{b: b, gen: gen}).Error(errors.New("pipeline error [codec]: decode"), ErrCategoryCodec)
	_, err = b.Capture()
	assert.Equal(t, "codec", decode.CategoryOf(err))
}

// TestBackend_MediaFile runs against a real file when TRICKPLAY_TEST_MEDIA
// points at one.
func TestBackend_MediaFile(t *testing.T) {
	media := os.Getenv("TRICKPLAY_TEST_MEDIA")
	if media == "" {
		t.Skip("TRICKPLAY_TEST_MEDIA not set")
	}

	b := New()
	defer b.Release()
	require.NoError(t, b.Configure(decode.ThumbnailPolicy))

	ready, err := b.Load(media)
	require.NoError(t, err)
	select {
	case err := <-ready:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("load did not complete")
	}

	rendered, err := b.SeekNearest(time.Second)
	require.NoError(t, err)
	select {
	case err := <-rendered:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Log("render notification did not arrive, capturing last frame")
	}

	frame, err := b.Capture()
	require.NoError(t, err)
	require.NoError(t, frame.Validate())
	assert.LessOrEqual(t, frame.Width, decode.ThumbnailPolicy.MaxWidth)
	assert.LessOrEqual(t, frame.Height, decode.ThumbnailPolicy.MaxHeight)
}
