package playback

import "time"

// Direction is the effective stepping direction of held keys.
type Direction int

const (
	DirNone    Direction = 0
	DirForward Direction = 1
	DirBack    Direction = -1
)

// stepRate is the frame-rate multiplier while a direction key is held.
// It is fixed and independent of the playback speed selector.
const stepRate = 1.0

// StepHold turns held directional keys into continuous single-frame
// movement. Callers must feed it press/release edges only; OS
// autorepeat events are not hold-state changes.
type StepHold struct {
	forward bool
	back    bool
	engaged bool
	fps     float64
	accum   float64
	last    time.Time
}

func NewStepHold() *StepHold {
	return &StepHold{}
}

// SetFPS configures the frame rate of the loaded clip and disengages
// any in-progress stepping; it is called on item switch.
func (s *StepHold) SetFPS(fps float64) {
	s.fps = fps
	s.engaged = false
	s.forward = false
	s.back = false
}

// Direction reports the effective direction: forward only, back only,
// or none. Both keys held cancel each other out to none.
func (s *StepHold) Direction() Direction {
	switch {
	case s.forward && !s.back:
		return DirForward
	case s.back && !s.forward:
		return DirBack
	default:
		return DirNone
	}
}

// Engaged reports whether the step ticking loop is running.
func (s *StepHold) Engaged() bool { return s.engaged }

// Hold records a press or release edge for one direction key and
// returns the immediate advance (+1, -1, or 0). A direction becoming
// effective engages ticking and steps one frame right away; releasing
// an opposing key while the other is still held resumes movement with
// the same immediate step, no restart delay.
func (s *StepHold) Hold(dir Direction, held bool, now time.Time) int {
	switch dir {
	case DirForward:
		s.forward = held
	case DirBack:
		s.back = held
	default:
		return 0
	}

	d := s.Direction()
	if d == DirNone {
		s.engaged = false
		return 0
	}
	if s.engaged || s.fps <= 0 {
		return 0
	}
	s.engaged = true
	s.last = now
	s.accum = 0
	return int(d)
}

// Disengage stops ticking without touching the hold flags. The owner
// calls it when the advancing frame hits a clip boundary, so a held
// key does not busy-loop at the clamp; the next hold edge re-evaluates.
func (s *StepHold) Disengage() {
	s.engaged = false
}

// Tick returns the signed number of whole frames to advance for the
// elapsed wall time, at the fixed step rate.
func (s *StepHold) Tick(now time.Time) int {
	if !s.engaged {
		return 0
	}
	d := s.Direction()
	if d == DirNone {
		s.engaged = false
		return 0
	}
	elapsed := now.Sub(s.last)
	s.last = now
	if elapsed < 0 {
		elapsed = 0
	}
	s.accum += elapsed.Seconds() * s.fps * stepRate
	n := int(s.accum)
	s.accum -= float64(n)
	return n * int(d)
}
