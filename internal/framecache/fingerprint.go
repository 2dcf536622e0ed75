package framecache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/qi7876/CaptionCheck/pkg/jsonio"
)

// MetaFileName is the fingerprint file written alongside the numbered
// frame images in a cache directory.
const MetaFileName = "meta.json"

// fpsTolerance allows for float formatting noise when comparing the
// recorded frame rate against the record's.
const fpsTolerance = 1e-3

// Meta fingerprints the video a frame directory was extracted from. A
// directory is only reusable while every field still matches.
type Meta struct {
	GeneratedAt  string  `json:"generated_at"`
	FPS          float64 `json:"fps"`
	TotalFrames  int     `json:"total_frames"`
	VideoPath    string  `json:"video_path"`
	VideoMtimeNs int64   `json:"video_mtime_ns"`
	VideoSize    int64   `json:"video_size"`
}

// NewMeta fingerprints videoPath as it exists right now.
func NewMeta(videoPath string, fps float64, totalFrames int) (Meta, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return Meta{}, fmt.Errorf("stat video: %w", err)
	}
	return Meta{
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
		FPS:          fps,
		TotalFrames:  totalFrames,
		VideoPath:    videoPath,
		VideoMtimeNs: info.ModTime().UnixNano(),
		VideoSize:    info.Size(),
	}, nil
}

// Write stores the fingerprint into dir.
func (m Meta) Write(dir string) error {
	return jsonio.WriteAtomic(filepath.Join(dir, MetaFileName), m)
}

// FrameFileName returns the numbered image file name for a frame index.
func FrameFileName(frame int) string {
	return fmt.Sprintf("%06d.jpg", frame)
}

// Validate reports whether cacheDir holds frames extracted from the
// current content of videoPath at the given fps and frame count. Any
// missing or unparseable fingerprint, stat failure, field mismatch, or
// absent boundary frame file invalidates the directory.
func Validate(cacheDir, videoPath string, fps float64, totalFrames int) bool {
	if totalFrames <= 0 {
		return false
	}

	var meta Meta
	if err := jsonio.Read(filepath.Join(cacheDir, MetaFileName), &meta); err != nil {
		return false
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return false
	}
	if meta.VideoMtimeNs != info.ModTime().UnixNano() || meta.VideoSize != info.Size() {
		return false
	}
	if diff := meta.FPS - fps; diff > fpsTolerance || diff < -fpsTolerance {
		return false
	}
	if meta.TotalFrames != totalFrames {
		return false
	}

	for _, frame := range []int{0, totalFrames - 1} {
		if _, err := os.Stat(filepath.Join(cacheDir, FrameFileName(frame))); err != nil {
			return false
		}
	}
	return true
}
