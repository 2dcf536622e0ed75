package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepHold_ImmediateStepOnEngage(t *testing.T) {
	s := NewStepHold()
	s.SetFPS(10)

	now := time.Unix(0, 0)
	assert.Equal(t, 1, s.Hold(DirForward, true, now))
	assert.True(t, s.Engaged())

	// Holding keeps pace with the frame rate: 100ms at 10 fps is one frame.
	assert.Equal(t, 0, s.Tick(now.Add(50*time.Millisecond)))
	assert.Equal(t, 1, s.Tick(now.Add(100*time.Millisecond)))
}

func TestStepHold_BackwardSteps(t *testing.T) {
	s := NewStepHold()
	s.SetFPS(10)

	now := time.Unix(0, 0)
	assert.Equal(t, -1, s.Hold(DirBack, true, now))
	assert.Equal(t, -1, s.Tick(now.Add(100*time.Millisecond)))
}

func TestStepHold_BothHeldCancelsToNone(t *testing.T) {
	s := NewStepHold()
	s.SetFPS(10)

	now := time.Unix(0, 0)
	assert.Equal(t, 1, s.Hold(DirForward, true, now))
	assert.Equal(t, 0, s.Hold(DirBack, true, now))
	assert.Equal(t, DirNone, s.Direction())
	assert.False(t, s.Engaged())
	assert.Equal(t, 0, s.Tick(now.Add(time.Second)))
}

func TestStepHold_ReleasingOneResumesOther(t *testing.T) {
	s := NewStepHold()
	s.SetFPS(10)

	now := time.Unix(0, 0)
	s.Hold(DirForward, true, now)
	s.Hold(DirBack, true, now)
	assert.False(t, s.Engaged())

	// Releasing back resumes forward movement with no restart delay:
	// the immediate step fires on the release edge itself.
	assert.Equal(t, 1, s.Hold(DirBack, false, now.Add(time.Second)))
	assert.True(t, s.Engaged())
}

func TestStepHold_RepeatedPressEdgeDoesNotRestep(t *testing.T) {
	s := NewStepHold()
	s.SetFPS(10)

	now := time.Unix(0, 0)
	assert.Equal(t, 1, s.Hold(DirForward, true, now))
	// A second press edge for the already-held direction (which a
	// caller would only produce by filtering bugs) must not step again
	// or reset the accumulator.
	s.Tick(now.Add(50 * time.Millisecond))
	assert.Equal(t, 0, s.Hold(DirForward, true, now.Add(60*time.Millisecond)))
	assert.Equal(t, 1, s.Tick(now.Add(100*time.Millisecond)))
}

func TestStepHold_DisengageStopsTickingWhileHeld(t *testing.T) {
	s := NewStepHold()
	s.SetFPS(10)

	now := time.Unix(0, 0)
	s.Hold(DirForward, true, now)
	s.Disengage()

	assert.Equal(t, 0, s.Tick(now.Add(time.Second)))
	assert.Equal(t, DirForward, s.Direction())
	assert.False(t, s.Engaged())
}

func TestStepHold_ReleaseDisengages(t *testing.T) {
	s := NewStepHold()
	s.SetFPS(10)

	now := time.Unix(0, 0)
	s.Hold(DirForward, true, now)
	assert.Equal(t, 0, s.Hold(DirForward, false, now.Add(time.Second)))
	assert.False(t, s.Engaged())
	assert.Equal(t, 0, s.Tick(now.Add(2*time.Second)))
}

func TestStepHold_PaceIndependentOfPlaybackRate(t *testing.T) {
	// The step rate is a fixed multiplier of the clip fps; 500ms at
	// 30 fps is 15 frames no matter what the speed selector says.
	s := NewStepHold()
	s.SetFPS(30)

	now := time.Unix(0, 0)
	total := s.Hold(DirForward, true, now)
	total += s.Tick(now.Add(500 * time.Millisecond))
	assert.Equal(t, 16, total) // 15 plus the immediate step
}

func TestStepHold_NoEngageWithoutFPS(t *testing.T) {
	s := NewStepHold()
	assert.Equal(t, 0, s.Hold(DirForward, true, time.Now()))
	assert.False(t, s.Engaged())
}
