package dimensions

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name             string
		srcW, srcH       int
		targetW, targetH int
		wantW, wantH     int
	}{
		{"neither target", 640, 360, 0, 0, 640, 360},
		{"width only truncates 50.625", 640, 360, 90, 0, 90, 50},
		{"height only truncates 284.44", 640, 360, 0, 160, 284, 160},
		{"both targets verbatim distorts", 640, 360, 90, 160, 90, 160},
		{"width only exact", 640, 360, 320, 0, 320, 180},
		{"height only exact", 640, 360, 0, 180, 320, 180},
		{"portrait width only", 360, 640, 90, 0, 90, 160},
		{"upscale width only", 320, 180, 1280, 0, 1280, 720},
		{"tiny target clamps to one pixel", 4000, 10, 10, 0, 10, 1},
		{"odd source width only", 641, 359, 100, 0, 100, 56},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := Resolve(tt.srcW, tt.srcH, tt.targetW, tt.targetH)
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, w, "width")
			assert.Equal(t, tt.wantH, h, "height")
		})
	}
}

func TestResolve_Rejects(t *testing.T) {
	tests := []struct {
		name                         string
		srcW, srcH, targetW, targetH int
		want                         error
	}{
		{"negative width", 640, 360, -1, 0, ErrInvalidTarget},
		{"negative height", 640, 360, 0, -5, ErrInvalidTarget},
		{"zero source width", 0, 360, 90, 0, ErrInvalidSource},
		{"negative source height", 640, -360, 90, 0, ErrInvalidSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Resolve(tt.srcW, tt.srcH, tt.targetW, tt.targetH)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// TestResolve_AspectWithinOnePixel checks that a single target dimension
// keeps the derived side within one pixel of the exact ratio, and that it
// never rounds up.
func TestResolve_AspectWithinOnePixel(t *testing.T) {
	sources := [][2]int{{640, 360}, {1920, 1080}, {853, 480}, {480, 640}, {1001, 3}}
	for _, src := range sources {
		for target := 1; target <= 2000; target += 7 {
			_, h, err := Resolve(src[0], src[1], target, 0)
			require.NoError(t, err)
			exactH := float64(target) * float64(src[1]) / float64(src[0])
			assert.LessOrEqual(t, math.Abs(float64(h)-exactH), 1.0, "src=%v w=%d", src, target)
			if exactH >= 1 {
				assert.Equal(t, int(exactH), h, "truncation src=%v w=%d", src, target)
			}

			w, _, err := Resolve(src[0], src[1], 0, target)
			require.NoError(t, err)
			exactW := float64(target) * float64(src[0]) / float64(src[1])
			assert.LessOrEqual(t, math.Abs(float64(w)-exactW), 1.0, "src=%v h=%d", src, target)
		}
	}
}
