// Package cli is the captioncheck command line: dataset maintenance
// commands that run without the review UI.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/qi7876/CaptionCheck/internal/config"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "captioncheck",
		Short:        "Maintain a caption review dataset and its frame caches",
		SilenceUsage: true,
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	root.PersistentFlags().String("data-root", "", "Dataset root (overrides CAPTIONCHECK_DATA_ROOT)")
	root.PersistentFlags().String("cache-root", "", "Frame cache root (overrides CAPTIONCHECK_CACHE_ROOT)")

	root.AddCommand(newScanCmd(), newPreprocessCmd(), newExtractCmd(), newEditCmd(), newWatchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig builds the configuration from the environment plus any
// persistent flag overrides, and a logger at the configured level.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	var opts []config.Option
	if root, _ := cmd.Flags().GetString("data-root"); root != "" {
		opts = append(opts, config.WithDataRoot(root))
	}
	if root, _ := cmd.Flags().GetString("cache-root"); root != "" {
		opts = append(opts, config.WithCacheRoot(root))
	}

	cfg, err := config.NewFromEnv(opts...)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      logLevel(cfg.Log.Level),
			TimeFormat: "15:04:05",
		}),
	)
	return cfg, logger, nil
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
