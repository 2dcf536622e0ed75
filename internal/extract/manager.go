package extract

import (
	"log/slog"
	"sync"
)

// Manager enforces the single-job invariant: at most one decode
// process runs at a time, and starting a new job cancels and cleans up
// the previous one first.
type Manager struct {
	ext *Extractor
	log *slog.Logger

	mu      sync.Mutex
	current *Job
}

// NewManager resolves the decode executable once at startup; a missing
// executable is reported as ErrExtractorNotFound rather than failing
// later mid-review.
func NewManager(ffmpegPath string, log *slog.Logger) (*Manager, error) {
	ext, err := NewExtractor(ffmpegPath)
	if err != nil {
		return nil, err
	}
	return &Manager{ext: ext, log: log}, nil
}

// Start launches a generation job for req, cancelling any job still in
// flight. onProgress is invoked with monotonically non-decreasing
// frame counts from the job's supervision goroutine.
func (m *Manager) Start(req Request, onProgress func(int)) (*Job, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	prev := m.current
	m.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	job := newJob(m.ext, m.log, req, onProgress)
	m.mu.Lock()
	m.current = job
	m.mu.Unlock()

	go job.run()
	return job, nil
}

// Cancel stops the in-flight job, if any, and waits for its cleanup.
// No-op when idle.
func (m *Manager) Cancel() {
	m.mu.Lock()
	job := m.current
	m.mu.Unlock()
	if job != nil {
		job.Cancel()
	}
}

// Running reports whether a job is currently in flight.
func (m *Manager) Running() bool {
	m.mu.Lock()
	job := m.current
	m.mu.Unlock()
	if job == nil {
		return false
	}
	select {
	case <-job.Done():
		return false
	default:
		return true
	}
}
