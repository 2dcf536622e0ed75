// Package playback drives the current-frame value of a review session.
// Two mutually exclusive drivers exist: the Clock for continuous
// variable-speed playback and the StepHold controller for held-key
// single-frame stepping. Both convert wall-clock time into whole-frame
// advances through a fractional accumulator, so tick-interval jitter
// never produces more movement than elapsed time justifies. Neither
// driver mutates the frame itself; they report advances and the owner
// applies them.
package playback

import "time"

// TickInterval is the scheduling period the session uses to poll the
// active driver.
const TickInterval = 15 * time.Millisecond

// State is the playback state of the Clock.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
)

// Clock advances frames at fps times a configurable playback rate.
type Clock struct {
	state State
	fps   float64
	rate  float64
	accum float64
	last  time.Time
}

func NewClock() *Clock {
	return &Clock{state: StateStopped, rate: 1.0}
}

// SetFPS configures the frame rate of the loaded clip and stops the
// clock; it is called on item switch.
func (c *Clock) SetFPS(fps float64) {
	c.fps = fps
	c.Stop()
}

// SetRate changes the playback speed multiplier. It takes effect on
// the next tick without restarting the clock.
func (c *Clock) SetRate(rate float64) {
	if rate > 0 {
		c.rate = rate
	}
}

func (c *Clock) Rate() float64 { return c.rate }

func (c *Clock) State() State { return c.state }

func (c *Clock) Playing() bool { return c.state == StatePlaying }

// Start transitions Stopped to Playing, recording the reference time
// and clearing the fractional accumulator. Starting an already playing
// clock is a no-op. The caller is responsible for only starting once
// frames are ready to render.
func (c *Clock) Start(now time.Time) {
	if c.state == StatePlaying || c.fps <= 0 {
		return
	}
	c.state = StatePlaying
	c.last = now
	c.accum = 0
}

// Stop transitions to Stopped unconditionally.
func (c *Clock) Stop() {
	c.state = StateStopped
}

// Tick returns the number of whole frames to advance for the wall
// time elapsed since the previous tick. The fractional remainder is
// retained for the next tick.
func (c *Clock) Tick(now time.Time) int {
	if c.state != StatePlaying {
		return 0
	}
	elapsed := now.Sub(c.last)
	c.last = now
	if elapsed < 0 {
		elapsed = 0
	}
	c.accum += elapsed.Seconds() * c.fps * c.rate
	n := int(c.accum)
	c.accum -= float64(n)
	return n
}
