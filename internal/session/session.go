// Package session is the top-level review controller. It owns the
// current item and the single current-frame value; the playback clock
// and step-hold controller only ever request advances, and the session
// applies them serially, which keeps the two drivers mutually
// exclusive and the frame mutation free of interleaving.
package session

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/qi7876/CaptionCheck/internal/caption"
	"github.com/qi7876/CaptionCheck/internal/config"
	"github.com/qi7876/CaptionCheck/internal/dataset"
	"github.com/qi7876/CaptionCheck/internal/extract"
	"github.com/qi7876/CaptionCheck/internal/framecache"
	"github.com/qi7876/CaptionCheck/internal/playback"
	"github.com/qi7876/CaptionCheck/internal/timeline"
)

// Events are the hooks the presentation layer renders from. Every
// field is optional. Callbacks run on the session's loop or caller
// goroutine and must not call back into the Controller.
type Events struct {
	FrameChanged       func(frame int)
	PlayStateChanged   func(playing bool)
	GenerationProgress func(done, total int)
	FramesReady        func(item dataset.Item)
	ReviewedChanged    func(item dataset.Item, reviewed bool)
	Error              func(err error)
}

// Controller wires keyboard/slider input to the playback drivers, the
// frame cache, and the caption-record collaborator.
type Controller struct {
	log      *slog.Logger
	frames   *framecache.Manager
	gen      *extract.Manager
	events   Events
	now      func() time.Time
	settings *config.SessionSettingsStore

	mu          sync.Mutex
	clock       *playback.Clock
	step        *playback.StepHold
	item        *dataset.Item
	fps         float64
	totalFrames int
	current     int
	reviewed    bool
	ready       bool
	job         *extract.Job

	stopOnce sync.Once
	stopCh   chan struct{}
}

type Option func(*Controller)

// WithNow injects the time source, used by tests to simulate ticks.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithSettings persists the playback rate and last open item across
// sessions and restores the rate on construction.
func WithSettings(store *config.SessionSettingsStore) Option {
	return func(c *Controller) {
		c.settings = store
	}
}

func New(log *slog.Logger, frames *framecache.Manager, gen *extract.Manager, events Events, opts ...Option) *Controller {
	c := &Controller{
		log:    log,
		frames: frames,
		gen:    gen,
		events: events,
		now:    time.Now,
		clock:  playback.NewClock(),
		step:   playback.NewStepHold(),
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.settings != nil {
		c.clock.SetRate(c.settings.Get().PlaybackRate)
	}
	return c
}

// Run drives the scheduling ticks until Close. It is the only
// goroutine advancing frames during normal operation.
func (c *Controller) Run() {
	ticker := time.NewTicker(playback.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.Tick(c.now())
		}
	}
}

// Close stops the tick loop, cancels any in-flight generation, and
// stops both frame drivers.
func (c *Controller) Close() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.gen != nil {
		c.gen.Cancel()
	}
	c.mu.Lock()
	c.clock.Stop()
	c.step.Disengage()
	c.mu.Unlock()
}

// SelectItem makes item current: drivers stop, any generation for the
// previous item is cancelled, the record is loaded, and the frame
// cache is validated or regenerated before controls come back.
func (c *Controller) SelectItem(item dataset.Item) error {
	if c.gen != nil {
		c.gen.Cancel()
	}

	record, err := caption.Read(item.CaptionPath)
	if err != nil {
		err = fmt.Errorf("read caption record: %w", err)
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	c.item = &item
	c.fps = record.FPS()
	c.totalFrames = record.TotalFrames()
	c.reviewed = record.Reviewed()
	c.current = 0
	c.ready = false
	c.job = nil
	c.clock.SetFPS(c.fps)
	c.step.SetFPS(c.fps)
	c.frames.Deactivate()

	fps, total := c.fps, c.totalFrames
	fire := []func(){
		func() { c.emitFrame(0) },
		func() { c.emitPlayState(false) },
	}
	c.mu.Unlock()
	for _, f := range fire {
		f()
	}
	c.persistSettings(func(s *config.SessionSettings) { s.LastItem = item.Key() })

	finalDir := c.frames.ItemDir(item.Sport, item.Event)
	if framecache.Validate(finalDir, item.VideoPath, fps, total) {
		c.activate(item, finalDir)
		return nil
	}
	return c.regenerate(item, fps, total, finalDir)
}

func (c *Controller) activate(item dataset.Item, dir string) {
	c.mu.Lock()
	if c.item == nil || c.item.Key() != item.Key() {
		c.mu.Unlock()
		return
	}
	c.frames.Activate(dir)
	c.ready = true
	c.mu.Unlock()

	c.log.Info("frames ready", "item", item.Key())
	if c.events.FramesReady != nil {
		c.events.FramesReady(item)
	}
}

func (c *Controller) regenerate(item dataset.Item, fps float64, total int, finalDir string) error {
	req := extract.Request{
		VideoPath:   item.VideoPath,
		FPS:         fps,
		TotalFrames: total,
		TmpDir:      c.frames.StagingDir(item.Sport, item.Event),
		FinalDir:    finalDir,
	}
	job, err := c.gen.Start(req, func(n int) {
		if c.events.GenerationProgress != nil {
			c.events.GenerationProgress(n, total)
		}
	})
	if err != nil {
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	c.job = job
	c.mu.Unlock()

	go func() {
		<-job.Done()
		switch job.Status() {
		case extract.StatusSucceeded:
			c.activate(item, finalDir)
		case extract.StatusFailed:
			c.emitError(fmt.Errorf("frame extraction for %s: %w", item.Key(), job.Err()))
		}
	}()
	return nil
}

// Tick advances the current frame by whatever the active driver has
// earned since the last tick. Run calls it on the scheduling interval;
// tests call it directly with simulated time.
func (c *Controller) Tick(now time.Time) {
	c.mu.Lock()
	var fire []func()
	switch {
	case c.step.Engaged():
		if delta := c.step.Tick(now); delta != 0 {
			fire = c.applyStepLocked(delta)
		}
	case c.clock.Playing():
		if delta := c.clock.Tick(now); delta > 0 {
			fire = c.applyPlaybackLocked(delta)
		}
	}
	c.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// applyPlaybackLocked moves forward by delta frames; reaching the last
// frame clamps there and pauses playback rather than looping.
func (c *Controller) applyPlaybackLocked(delta int) []func() {
	var fire []func()
	next := c.current + delta
	if c.totalFrames > 0 && next >= c.totalFrames-1 {
		next = c.totalFrames - 1
		c.clock.Stop()
		fire = append(fire, func() { c.emitPlayState(false) })
	}
	return append(fire, c.setFrameLocked(next)...)
}

// applyStepLocked moves by the signed delta; hitting either boundary
// disengages the step loop even while the key is held.
func (c *Controller) applyStepLocked(delta int) []func() {
	next := c.current + delta
	clamped := timeline.ClampFrame(next, c.totalFrames)
	atStart := clamped == 0
	atEnd := c.totalFrames > 0 && clamped == c.totalFrames-1
	if clamped != next || atStart || atEnd {
		c.step.Disengage()
	}
	return c.setFrameLocked(clamped)
}

func (c *Controller) setFrameLocked(frame int) []func() {
	frame = timeline.ClampFrame(frame, c.totalFrames)
	if frame == c.current {
		return nil
	}
	c.current = frame
	return []func(){func() { c.emitFrame(frame) }}
}

// TogglePlay flips between playing and stopped.
func (c *Controller) TogglePlay() {
	if c.Playing() {
		c.Pause()
	} else {
		c.Play()
	}
}

// Play starts continuous playback. No-op until frames are ready; an
// active step-hold is stopped first, the two drivers never run
// together.
func (c *Controller) Play() {
	c.mu.Lock()
	if !c.ready || c.totalFrames <= 0 {
		c.mu.Unlock()
		return
	}
	c.step.Disengage()
	wasPlaying := c.clock.Playing()
	c.clock.Start(c.now())
	c.mu.Unlock()

	if !wasPlaying {
		c.emitPlayState(true)
	}
}

// Pause stops continuous playback unconditionally.
func (c *Controller) Pause() {
	c.mu.Lock()
	wasPlaying := c.clock.Playing()
	c.clock.Stop()
	c.mu.Unlock()

	if wasPlaying {
		c.emitPlayState(false)
	}
}

func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Playing()
}

// SetRate changes the playback speed; it takes effect on the next tick.
func (c *Controller) SetRate(rate float64) {
	c.mu.Lock()
	c.clock.SetRate(rate)
	applied := c.clock.Rate()
	c.mu.Unlock()
	c.persistSettings(func(s *config.SessionSettings) { s.PlaybackRate = applied })
}

// persistSettings is best-effort; a failed write keeps the session
// running and is only logged.
func (c *Controller) persistSettings(mutate func(*config.SessionSettings)) {
	if c.settings == nil {
		return
	}
	next := c.settings.Get()
	mutate(&next)
	if _, err := c.settings.Update(next); err != nil {
		c.log.Warn("persist session settings", "error", err)
	}
}

// HoldStep records a press/release edge of a directional key. Callers
// must filter OS autorepeat events; only real edges toggle hold state.
func (c *Controller) HoldStep(dir playback.Direction, held bool) {
	c.mu.Lock()
	if !c.ready || c.totalFrames <= 0 {
		c.mu.Unlock()
		return
	}
	var fire []func()
	wasPlaying := c.clock.Playing()
	immediate := c.step.Hold(dir, held, c.now())
	if c.step.Engaged() && wasPlaying {
		c.clock.Stop()
		fire = append(fire, func() { c.emitPlayState(false) })
	}
	if immediate != 0 {
		fire = append(fire, c.applyStepLocked(immediate)...)
	}
	c.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// SeekFrame jumps straight to a frame, from the slider or the jump box.
func (c *Controller) SeekFrame(frame int) {
	c.mu.Lock()
	fire := c.setFrameLocked(frame)
	c.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// SeekTimeMs seeks by media time.
func (c *Controller) SeekTimeMs(ms int64) {
	c.mu.Lock()
	fire := c.setFrameLocked(timeline.TimeMsToFrame(ms, c.fps))
	c.mu.Unlock()
	for _, f := range fire {
		f()
	}
}

// CurrentFrame returns the frame under review.
func (c *Controller) CurrentFrame() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// CurrentTimeMs returns the media time of the frame under review.
func (c *Controller) CurrentTimeMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return timeline.FrameToTimeMs(c.current, c.fps)
}

// TotalFrames returns the clip length of the current item.
func (c *Controller) TotalFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalFrames
}

// Ready reports whether frames are available for the current item.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// Reviewed reports the cached reviewed state of the current item.
func (c *Controller) Reviewed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reviewed
}

// CurrentImage returns the decoded image for the frame under review.
func (c *Controller) CurrentImage() (image.Image, error) {
	c.mu.Lock()
	frame := c.current
	c.mu.Unlock()
	return c.frames.FrameAt(frame)
}

// SetReviewed writes the reviewed flag through to the caption record.
// The write is atomic; on failure the cached state is left unchanged
// and the error surfaced, so the UI never shows a state that was not
// persisted.
func (c *Controller) SetReviewed(reviewed bool) error {
	c.mu.Lock()
	item := c.item
	c.mu.Unlock()
	if item == nil {
		return nil
	}

	record, err := caption.Read(item.CaptionPath)
	if err == nil {
		record.SetReviewed(reviewed)
		err = record.WriteAtomic(item.CaptionPath)
	}
	if err != nil {
		err = fmt.Errorf("update reviewed state for %s: %w", item.Key(), err)
		c.emitError(err)
		return err
	}

	c.mu.Lock()
	c.reviewed = reviewed
	c.mu.Unlock()

	if c.events.ReviewedChanged != nil {
		c.events.ReviewedChanged(*item, reviewed)
	}
	return nil
}

// ClearCache cancels any in-flight generation and deletes the on-disk
// frame cache root. Safe at any time; the current item needs to be
// re-selected to regenerate.
func (c *Controller) ClearCache() error {
	if c.gen != nil {
		c.gen.Cancel()
	}
	c.mu.Lock()
	c.ready = false
	c.clock.Stop()
	c.step.Disengage()
	c.mu.Unlock()
	return c.frames.ClearDisk()
}

func (c *Controller) emitFrame(frame int) {
	if c.events.FrameChanged != nil {
		c.events.FrameChanged(frame)
	}
}

func (c *Controller) emitPlayState(playing bool) {
	if c.events.PlayStateChanged != nil {
		c.events.PlayStateChanged(playing)
	}
}

func (c *Controller) emitError(err error) {
	c.log.Error("session error", "error", err)
	if c.events.Error != nil {
		c.events.Error(err)
	}
}
