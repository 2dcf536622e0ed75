package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qi7876/CaptionCheck/internal/config"
	"github.com/qi7876/CaptionCheck/internal/dataset"
	"github.com/qi7876/CaptionCheck/internal/extract"
	"github.com/qi7876/CaptionCheck/internal/framecache"
	"github.com/qi7876/CaptionCheck/pkg/jsonio"
)

func writeItem(t *testing.T, dataRoot, sport, event string, totalFrames int) {
	t.Helper()
	dir := filepath.Join(dataRoot, sport, event)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataset.VideoFileName), []byte("video"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, dataset.RunMetaFileName), []byte("{}"), 0o644))
	require.NoError(t, jsonio.WriteAtomic(filepath.Join(dir, dataset.CaptionFileName), map[string]any{
		"info": map[string]any{"fps": 10.0, "total_frames": float64(totalFrames)},
		"long_caption": []any{
			map[string]any{"start_frame": 0.0, "end_frame": 3.0, "caption": "serve"},
		},
	}))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.NewFromEnv(
		config.WithDataRoot(filepath.Join(dir, "data")),
		config.WithCacheRoot(filepath.Join(dir, "cache")),
	)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(cfg.Dataset.DataRoot, 0o755))
	return cfg
}

func TestRunOnce_PreprocessesNewItems(t *testing.T) {
	cfg := testConfig(t)
	writeItem(t, cfg.Dataset.DataRoot, "tennis", "match_01", 50)
	writeItem(t, cfg.Dataset.DataRoot, "tennis", "match_02", 50)

	s := NewWatchService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), cron.New())
	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Items)
	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Warmed)

	// The second pass skips everything.
	summary, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Skipped)
	assert.Zero(t, summary.Processed)
}

func TestRunOnce_SeesItemsAddedBetweenPasses(t *testing.T) {
	cfg := testConfig(t)
	writeItem(t, cfg.Dataset.DataRoot, "tennis", "match_01", 50)

	s := NewWatchService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), cron.New())
	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.Items)

	writeItem(t, cfg.Dataset.DataRoot, "soccer", "final", 30)
	summary, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Items)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRunOnce_CountsBrokenRecords(t *testing.T) {
	cfg := testConfig(t)
	writeItem(t, cfg.Dataset.DataRoot, "tennis", "match_01", 50)
	captionPath := filepath.Join(cfg.Dataset.DataRoot, "tennis", "match_01", dataset.CaptionFileName)
	require.NoError(t, os.WriteFile(captionPath, []byte("{broken"), 0o644))

	s := NewWatchService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), cron.New())
	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
}

func TestRunOnce_WarmsMissingCaches(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake decoder scripts need a POSIX shell")
	}
	cfg := testConfig(t)
	writeItem(t, cfg.Dataset.DataRoot, "tennis", "match_01", 3)

	script := `#!/bin/sh
for a in "$@"; do last="$a"; done
dir=$(dirname "$last")
for i in 0 1 2; do printf 'jpg' > "$dir/$(printf '%06d.jpg' "$i")"; done
exit 0
`
	binPath := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(binPath, []byte(script), 0o755))
	gen, err := extract.NewManager(binPath, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	s := NewWatchService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), cron.New(), WithWarming(gen))
	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Warmed)

	itemDir := framecache.NewManager(cfg.Cache.Root, 1).ItemDir("tennis", "match_01")
	videoPath := filepath.Join(cfg.Dataset.DataRoot, "tennis", "match_01", dataset.VideoFileName)
	assert.True(t, framecache.Validate(itemDir, videoPath, 10, 3))

	// A warm cache is left alone on the next pass.
	summary, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Warmed)
}

func TestSchedule_RunsOnCron(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Dataset.DataRoot, 0o755))
	cfg.Watch.CronExpr = "@every 100ms"

	c := cron.New()
	s := NewWatchService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), c)
	require.NoError(t, s.Schedule(context.Background()))

	var passes atomic.Int32
	_, err := c.AddFunc("@every 100ms", func() { passes.Add(1) })
	require.NoError(t, err)

	c.Start()
	defer c.Stop()

	require.Eventually(t, func() bool {
		return passes.Load() >= 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestSchedule_RejectsBadCron(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch.CronExpr = "not a schedule"

	s := NewWatchService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), cron.New())
	assert.Error(t, s.Schedule(context.Background()))
}
