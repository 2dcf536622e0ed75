package extract

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qi7876/CaptionCheck/internal/framecache"
)

// Status is the lifecycle state of a generation job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// cancelWait bounds how long a cancelled job waits for the decode
// process to exit gracefully before killing it.
const cancelWait = time.Second

// Request describes one frame-extraction run. TmpDir is owned by the
// job until successful completion, when it is atomically renamed to
// FinalDir; FinalDir is never written in place.
type Request struct {
	VideoPath   string
	FPS         float64
	TotalFrames int
	TmpDir      string
	FinalDir    string
}

func (r Request) validate() error {
	if r.VideoPath == "" || r.TmpDir == "" || r.FinalDir == "" {
		return fmt.Errorf("extract: video, tmp and final paths are all required")
	}
	if r.FPS <= 0 {
		return fmt.Errorf("extract: fps must be positive, got %g", r.FPS)
	}
	return nil
}

// Job supervises one external decode process. Progress is streamed to
// the caller as a monotonically non-decreasing frame count; every exit
// path (success, failure, cancellation) leaves no temporary directory
// behind.
type Job struct {
	ID string

	req        Request
	ext        *Extractor
	log        *slog.Logger
	onProgress func(frames int)

	mu         sync.Mutex
	status     Status
	err        error
	lastFrames int

	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}
}

func newJob(ext *Extractor, log *slog.Logger, req Request, onProgress func(int)) *Job {
	return &Job{
		ID:         uuid.NewString(),
		req:        req,
		ext:        ext,
		log:        log,
		onProgress: onProgress,
		status:     StatusRunning,
		cancelCh:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Done is closed once the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Err returns what went wrong for failed jobs, nil otherwise.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Frames returns the last reported progress count.
func (j *Job) Frames() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastFrames
}

// Cancel requests termination and blocks until the job has cleaned up.
// Safe to call on a finished job.
func (j *Job) Cancel() {
	j.cancelOnce.Do(func() { close(j.cancelCh) })
	<-j.done
}

func (j *Job) finish(status Status, err error) {
	j.mu.Lock()
	j.status = status
	j.err = err
	j.mu.Unlock()
	if err != nil {
		j.log.Error("frame extraction finished", "job", j.ID, "status", status, "error", err)
	} else {
		j.log.Info("frame extraction finished", "job", j.ID, "status", status)
	}
	close(j.done)
}

func (j *Job) run() {
	tmp := j.req.TmpDir

	// A crashed or cancelled predecessor may have left a stale
	// temporary directory; only one may exist per item.
	if err := os.RemoveAll(tmp); err != nil {
		j.finish(StatusFailed, fmt.Errorf("remove stale tmp dir: %w", err))
		return
	}
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		j.finish(StatusFailed, fmt.Errorf("create tmp dir: %w", err))
		return
	}

	cmd := j.ext.command(j.req.VideoPath, j.req.FPS, j.req.TotalFrames, tmp)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		os.RemoveAll(tmp)
		j.finish(StatusFailed, fmt.Errorf("stdout pipe: %w", err))
		return
	}
	cmd.Stderr = io.Discard

	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmp)
		j.finish(StatusFailed, fmt.Errorf("start decoder: %w", err))
		return
	}
	j.log.Info("frame extraction started",
		"job", j.ID, "video", j.req.VideoPath, "fps", j.req.FPS, "frames", j.req.TotalFrames)

	waitCh := make(chan error, 1)
	go func() {
		j.scanProgress(stdout)
		waitCh <- cmd.Wait()
	}()

	select {
	case <-j.cancelCh:
		_ = cmd.Process.Signal(os.Interrupt)
		select {
		case <-waitCh:
		case <-time.After(cancelWait):
			_ = cmd.Process.Kill()
			<-waitCh
		}
		os.RemoveAll(tmp)
		j.finish(StatusCancelled, nil)
		return

	case err := <-waitCh:
		if err != nil {
			os.RemoveAll(tmp)
			j.finish(StatusFailed, fmt.Errorf("decoder exited: %w", err))
			return
		}
	}

	if err := j.promote(tmp); err != nil {
		os.RemoveAll(tmp)
		j.finish(StatusFailed, err)
		return
	}
	j.finish(StatusSucceeded, nil)
}

// scanProgress reads key=value progress lines, surfacing frame counts
// monotonically and clipped to the expected total. Regressive values
// from the decoder are dropped.
func (j *Job) scanProgress(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok || strings.TrimSpace(key) != "frame" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		if j.req.TotalFrames > 0 && n > j.req.TotalFrames {
			n = j.req.TotalFrames
		}

		j.mu.Lock()
		if n <= j.lastFrames {
			j.mu.Unlock()
			continue
		}
		j.lastFrames = n
		j.mu.Unlock()

		if j.onProgress != nil {
			j.onProgress(n)
		}
	}
}

// promote verifies the produced frames, writes the fingerprint, and
// atomically renames tmp into the final cache location. The rename is
// the only step that must be atomic: the final path is either the old
// directory, absent, or the complete new one.
func (j *Job) promote(tmp string) error {
	total := j.req.TotalFrames
	if total > 0 {
		last := filepath.Join(tmp, framecache.FrameFileName(total-1))
		if _, err := os.Stat(last); err != nil {
			return fmt.Errorf("decoder produced incomplete output, missing %s", framecache.FrameFileName(total-1))
		}
	} else {
		n, err := countFrameFiles(tmp)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("decoder produced no frames")
		}
		total = n
	}

	meta, err := framecache.NewMeta(j.req.VideoPath, j.req.FPS, total)
	if err != nil {
		return fmt.Errorf("fingerprint video: %w", err)
	}
	if err := meta.Write(tmp); err != nil {
		return fmt.Errorf("write fingerprint: %w", err)
	}

	if err := os.RemoveAll(j.req.FinalDir); err != nil {
		return fmt.Errorf("remove previous cache dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(j.req.FinalDir), 0o755); err != nil {
		return fmt.Errorf("create cache parent dir: %w", err)
	}
	if err := os.Rename(tmp, j.req.FinalDir); err != nil {
		return fmt.Errorf("promote cache dir: %w", err)
	}
	return nil
}

func countFrameFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("count produced frames: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jpg") {
			n++
		}
	}
	return n, nil
}
