// Package service runs the background dataset watch: on a cron
// schedule it rescans the data root, preprocesses new caption records,
// and optionally pre-extracts frame caches so items are ready before a
// reviewer opens them.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/qi7876/CaptionCheck/internal/caption"
	"github.com/qi7876/CaptionCheck/internal/config"
	"github.com/qi7876/CaptionCheck/internal/dataset"
	"github.com/qi7876/CaptionCheck/internal/extract"
	"github.com/qi7876/CaptionCheck/internal/framecache"
)

// RunSummary is the outcome of one watch pass.
type RunSummary struct {
	Items     int
	Processed int
	Skipped   int
	Failed    int
	Warmed    int
}

type WatchService struct {
	cfg      *config.Config
	log      *slog.Logger
	scanner  *dataset.Scanner
	frames   *framecache.Manager
	gen      *extract.Manager
	cronExpr string
	cron     *cron.Cron
	warm     bool
}

type WatchOption func(*WatchService)

// WithWarming makes each pass extract frame caches for items that do
// not have a valid one yet. Requires ffmpeg to be resolvable.
func WithWarming(gen *extract.Manager) WatchOption {
	return func(s *WatchService) {
		s.warm = true
		s.gen = gen
	}
}

func NewWatchService(cfg *config.Config, log *slog.Logger, c *cron.Cron, opts ...WatchOption) *WatchService {
	s := &WatchService{
		cfg:      cfg,
		log:      log,
		scanner:  dataset.NewScanner(cfg.Dataset.DataRoot),
		frames:   framecache.NewManager(cfg.Cache.Root, cfg.Cache.Capacity),
		cronExpr: cfg.Watch.CronExpr,
		cron:     c,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var singleflightGroup singleflight.Group

// Schedule registers the watch pass on the cron. Overlapping triggers
// collapse into the in-flight pass.
func (s *WatchService) Schedule(ctx context.Context) error {
	s.log.Info("scheduling dataset watch", "cron", s.cronExpr, "data_root", s.cfg.Dataset.DataRoot)

	runFunc := func() {
		_, _, _ = singleflightGroup.Do("run", func() (any, error) {
			summary, err := s.RunOnce(ctx)
			if err != nil {
				s.log.Error("watch pass failed", "error", err)
				return nil, err
			}
			s.log.Info("watch pass done",
				"items", summary.Items,
				"processed", summary.Processed,
				"skipped", summary.Skipped,
				"failed", summary.Failed,
				"warmed", summary.Warmed)
			return nil, nil
		})
	}
	_, err := s.cron.AddFunc(s.cronExpr, runFunc)
	return err
}

// RunOnce performs a single watch pass: rescan, preprocess, and when
// warming is enabled, extract missing frame caches one item at a time.
func (s *WatchService) RunOnce(ctx context.Context) (RunSummary, error) {
	s.scanner.Invalidate()
	items, err := s.scanner.Items()
	if err != nil {
		return RunSummary{}, fmt.Errorf("scan %s: %w", s.cfg.Dataset.DataRoot, err)
	}

	summary := RunSummary{Items: len(items)}
	for _, res := range caption.PreprocessAll(ctx, items, s.cfg.Review.PreprocessConcurrency) {
		switch res.Status {
		case caption.StatusProcessed:
			summary.Processed++
		case caption.StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
			s.log.Error("preprocess failed", "item", res.Item.Key(), "error", res.Message)
		}
	}

	if !s.warm {
		return summary, nil
	}
	warmed, err := s.warmCaches(ctx, items)
	summary.Warmed = warmed
	return summary, err
}

// warmCaches extracts frames for items without a valid cache. Items are
// handled sequentially; ffmpeg already saturates cores on its own.
func (s *WatchService) warmCaches(ctx context.Context, items []dataset.Item) (int, error) {
	warmed := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return warmed, err
		}

		record, err := caption.Read(item.CaptionPath)
		if err != nil {
			s.log.Error("skip warm, unreadable caption record", "item", item.Key(), "error", err)
			continue
		}
		fps, total := record.FPS(), record.TotalFrames()

		finalDir := s.frames.ItemDir(item.Sport, item.Event)
		if framecache.Validate(finalDir, item.VideoPath, fps, total) {
			continue
		}

		job, err := s.gen.Start(extract.Request{
			VideoPath:   item.VideoPath,
			FPS:         fps,
			TotalFrames: total,
			TmpDir:      s.frames.StagingDir(item.Sport, item.Event),
			FinalDir:    finalDir,
		}, nil)
		if err != nil {
			return warmed, fmt.Errorf("start extraction for %s: %w", item.Key(), err)
		}

		select {
		case <-ctx.Done():
			s.gen.Cancel()
			<-job.Done()
			return warmed, ctx.Err()
		case <-job.Done():
		}

		switch job.Status() {
		case extract.StatusSucceeded:
			warmed++
			s.log.Info("warmed frame cache", "item", item.Key(), "frames", job.Frames())
		case extract.StatusFailed:
			s.log.Error("warm extraction failed", "item", item.Key(), "error", job.Err())
		}
	}
	return warmed, nil
}
