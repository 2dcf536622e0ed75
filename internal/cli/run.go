package cli

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/qi7876/CaptionCheck/internal/caption"
	"github.com/qi7876/CaptionCheck/internal/dataset"
	"github.com/qi7876/CaptionCheck/internal/editor"
	"github.com/qi7876/CaptionCheck/internal/extract"
	"github.com/qi7876/CaptionCheck/internal/framecache"
	"github.com/qi7876/CaptionCheck/internal/service"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "List reviewable items in the dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			items, err := dataset.Scan(cfg.Dataset.DataRoot)
			if err != nil {
				return err
			}

			frames := framecache.NewManager(cfg.Cache.Root, cfg.Cache.Capacity)
			for _, item := range items {
				state := "reviewed"
				record, err := caption.Read(item.CaptionPath)
				switch {
				case err != nil:
					state = "broken"
				case !record.Reviewed():
					state = "pending"
				}

				cache := "no cache"
				if record != nil &&
					framecache.Validate(frames.ItemDir(item.Sport, item.Event), item.VideoPath, record.FPS(), record.TotalFrames()) {
					cache = "cached"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %-8s %s\n", item.Key(), state, cache)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d items\n", len(items))
			return nil
		},
	}
}

func newPreprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess",
		Short: "Normalize caption records before review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			items, err := dataset.Scan(cfg.Dataset.DataRoot)
			if err != nil {
				return err
			}

			failed := 0
			for _, res := range caption.PreprocessAll(cmd.Context(), items, cfg.Review.PreprocessConcurrency) {
				switch res.Status {
				case caption.StatusError:
					failed++
					log.Error("preprocess failed", "item", res.Item.Key(), "error", res.Message)
				default:
					log.Info("preprocess", "item", res.Item.Key(), "status", res.Status)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d items failed", failed, len(items))
			}
			return nil
		},
	}
}

func newExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [sport/event ...]",
		Short: "Build frame caches ahead of review",
		Long:  "Extracts frame caches for the named items, or for every item without a valid cache when none are named.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			items, err := dataset.Scan(cfg.Dataset.DataRoot)
			if err != nil {
				return err
			}
			items, err = filterItems(items, args)
			if err != nil {
				return err
			}

			frames := framecache.NewManager(cfg.Cache.Root, cfg.Cache.Capacity)
			gen, err := extract.NewManager(cfg.Extract.FFmpegPath, log)
			if err != nil {
				return err
			}

			for _, item := range items {
				record, err := caption.Read(item.CaptionPath)
				if err != nil {
					return fmt.Errorf("read caption record for %s: %w", item.Key(), err)
				}
				fps, total := record.FPS(), record.TotalFrames()

				finalDir := frames.ItemDir(item.Sport, item.Event)
				if framecache.Validate(finalDir, item.VideoPath, fps, total) {
					log.Info("cache already valid", "item", item.Key())
					continue
				}

				job, err := gen.Start(extract.Request{
					VideoPath:   item.VideoPath,
					FPS:         fps,
					TotalFrames: total,
					TmpDir:      frames.StagingDir(item.Sport, item.Event),
					FinalDir:    finalDir,
				}, func(n int) {
					log.Debug("extracting", "item", item.Key(), "frame", n, "total", total)
				})
				if err != nil {
					return err
				}

				select {
				case <-cmd.Context().Done():
					gen.Cancel()
					<-job.Done()
					return cmd.Context().Err()
				case <-job.Done():
				}
				if job.Status() != extract.StatusSucceeded {
					return fmt.Errorf("extract %s: %w", item.Key(), job.Err())
				}
				log.Info("extracted", "item", item.Key(), "frames", job.Frames())
			}
			return nil
		},
	}
	return cmd
}

func newEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit sport/event",
		Short: "Open an item's caption record in the external editor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			items, err := dataset.Scan(cfg.Dataset.DataRoot)
			if err != nil {
				return err
			}
			items, err = filterItems(items, args)
			if err != nil {
				return err
			}
			return editor.New(cfg.Review.EditorCommand, log).Open(items[0].CaptionPath)
		},
	}
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rescan and preprocess the dataset on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			warm, _ := cmd.Flags().GetBool("warm")

			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var opts []service.WatchOption
			if warm {
				gen, err := extract.NewManager(cfg.Extract.FFmpegPath, log)
				if err != nil {
					return err
				}
				opts = append(opts, service.WithWarming(gen))
			}

			c := cron.New()
			svc := service.NewWatchService(cfg, log, c, opts...)
			if err := svc.Schedule(ctx); err != nil {
				return err
			}

			// One pass up front so a fresh dataset is usable before
			// the first cron trigger.
			if _, err := svc.RunOnce(ctx); err != nil {
				return err
			}

			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().Bool("warm", false, "Also extract missing frame caches each pass")
	return cmd
}

// filterItems keeps the items named by sport/event keys; no keys keeps
// everything.
func filterItems(items []dataset.Item, keys []string) ([]dataset.Item, error) {
	if len(keys) == 0 {
		return items, nil
	}
	byKey := make(map[string]dataset.Item, len(items))
	for _, item := range items {
		byKey[item.Key()] = item
	}

	ret := make([]dataset.Item, 0, len(keys))
	for _, key := range keys {
		item, ok := byKey[strings.TrimSuffix(key, "/")]
		if !ok {
			return nil, fmt.Errorf("unknown item %q", key)
		}
		ret = append(ret, item)
	}
	return ret, nil
}
