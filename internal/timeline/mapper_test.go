package timeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip_RealFrameRates(t *testing.T) {
	rates := []float64{10, 23.976, 24, 25, 29.97, 30, 50, 59.94, 60, 120}

	for _, fps := range rates {
		for f := 0; f < 2000; f++ {
			ms := FrameToTimeMs(f, fps)
			got := TimeMsToFrame(ms, fps)
			if got != f {
				t.Fatalf("fps=%v frame=%d: ms=%d mapped back to %d", fps, f, ms, got)
			}
		}
	}
}

func TestFrameToTimeMs(t *testing.T) {
	assert.Equal(t, int64(0), FrameToTimeMs(0, 10))
	assert.Equal(t, int64(100), FrameToTimeMs(1, 10))
	assert.Equal(t, int64(33), FrameToTimeMs(1, 30))
	assert.Equal(t, int64(1000), FrameToTimeMs(30, 30))
}

func TestFrameToTimeMs_InvalidFPS(t *testing.T) {
	assert.Equal(t, int64(0), FrameToTimeMs(7, 0))
	assert.Equal(t, int64(0), FrameToTimeMs(7, -5))
}

func TestTimeMsToFrame_InvalidFPS(t *testing.T) {
	assert.Equal(t, 0, TimeMsToFrame(700, 0))
	assert.Equal(t, 0, TimeMsToFrame(700, -1))
}

func TestTimeMsToFrame_MidFrameTimes(t *testing.T) {
	// Times inside a frame interval map to that frame, not the next.
	assert.Equal(t, 0, TimeMsToFrame(40, 10))
	assert.Equal(t, 0, TimeMsToFrame(99, 10))
	assert.Equal(t, 1, TimeMsToFrame(100, 10))
	assert.Equal(t, 1, TimeMsToFrame(150, 10))
}

func TestClampFrame(t *testing.T) {
	assert.Equal(t, 0, ClampFrame(-3, 100))
	assert.Equal(t, 99, ClampFrame(150, 100))
	assert.Equal(t, 42, ClampFrame(42, 100))

	// Unknown total: only the lower bound applies.
	assert.Equal(t, 0, ClampFrame(-1, 0))
	assert.Equal(t, 1000000, ClampFrame(1000000, 0))
}
