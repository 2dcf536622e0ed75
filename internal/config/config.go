package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/robfig/cron/v3"
)

// Config holds all application configuration.
// Supports environment variables with sensible defaults.
//
// Environment Variables:
// Dataset Configuration:
// - CAPTIONCHECK_DATA_ROOT: root of the <sport>/<event> tree (default: data)
//
// Frame Cache Configuration:
// - CAPTIONCHECK_CACHE_ROOT: extracted-frame cache root (default: <data_root>/.frame_cache)
// - FRAME_CACHE_CAPACITY: in-memory decoded-frame budget (default: 128)
//
// Extraction Configuration:
// - FFMPEG_PATH: ffmpeg executable (default: resolved from PATH)
//
// Review Configuration:
// - EDITOR_COMMAND: command to open caption files with (default: platform opener)
// - PREPROCESS_CONCURRENCY: parallel preprocess workers (default: 4)
//
// Watch Configuration:
// - RESCAN_CRON: dataset rescan schedule (default: @every 5m)
//
// Logging:
// - LOG_LEVEL: debug, info, warn, or error (default: info)

type Config struct {
	Dataset DatasetConfig `json:"dataset"`
	Cache   CacheConfig   `json:"cache"`
	Extract ExtractConfig `json:"extract"`
	Review  ReviewConfig  `json:"review"`
	Watch   WatchConfig   `json:"watch"`
	Log     LogConfig     `json:"log"`
}

// DatasetConfig locates the review dataset.
type DatasetConfig struct {
	DataRoot string `json:"data_root"`
}

// CacheConfig holds the frame cache layout and budget.
type CacheConfig struct {
	Root     string `json:"root"`
	Capacity int    `json:"capacity"`
}

// ExtractConfig holds the frame extraction tooling.
type ExtractConfig struct {
	FFmpegPath string `json:"ffmpeg_path"`
}

// ReviewConfig holds review-session knobs.
type ReviewConfig struct {
	EditorCommand         string `json:"editor_command"`
	PreprocessConcurrency int    `json:"preprocess_concurrency"`
}

// WatchConfig holds the background rescan schedule.
type WatchConfig struct {
	CronExpr string `json:"cron_expr"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `json:"level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// WithDataRoot overrides the dataset root.
func WithDataRoot(root string) Option {
	return func(c *Config) {
		c.Dataset.DataRoot = root
	}
}

// WithCacheRoot overrides the frame cache root.
func WithCacheRoot(root string) Option {
	return func(c *Config) {
		c.Cache.Root = root
	}
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	dataRoot := getEnvString("CAPTIONCHECK_DATA_ROOT", "data")
	config := &Config{
		Dataset: DatasetConfig{
			DataRoot: dataRoot,
		},
		Cache: CacheConfig{
			Root:     getEnvString("CAPTIONCHECK_CACHE_ROOT", filepath.Join(dataRoot, ".frame_cache")),
			Capacity: getEnvInt("FRAME_CACHE_CAPACITY", 128),
		},
		Extract: ExtractConfig{
			FFmpegPath: getEnvString("FFMPEG_PATH", ""),
		},
		Review: ReviewConfig{
			EditorCommand:         getEnvString("EDITOR_COMMAND", ""),
			PreprocessConcurrency: getEnvInt("PREPROCESS_CONCURRENCY", 4),
		},
		Watch: WatchConfig{
			CronExpr: getEnvString("RESCAN_CRON", "@every 5m"),
		},
		Log: LogConfig{
			Level: getEnvString("LOG_LEVEL", "info"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.Dataset.DataRoot == "" {
		return fmt.Errorf("CAPTIONCHECK_DATA_ROOT is required")
	}
	if c.Cache.Root == "" {
		return fmt.Errorf("CAPTIONCHECK_CACHE_ROOT is required")
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("FRAME_CACHE_CAPACITY must be positive, got %d", c.Cache.Capacity)
	}
	if c.Review.PreprocessConcurrency <= 0 {
		return fmt.Errorf("PREPROCESS_CONCURRENCY must be positive, got %d", c.Review.PreprocessConcurrency)
	}
	if _, err := cron.ParseStandard(c.Watch.CronExpr); err != nil {
		return fmt.Errorf("RESCAN_CRON %q is not a valid schedule: %w", c.Watch.CronExpr, err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
