// Package extract rasterizes a segment video into the numbered frame
// images the review cache serves. Decoding is delegated to an external
// ffmpeg process supervised by a cancellable generation job; the final
// cache directory only ever appears by atomic rename of a completed
// temporary directory.
package extract

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// ErrExtractorNotFound is returned when the decode executable cannot
// be resolved at startup. Frame-extraction playback is unavailable for
// the session; it is a user-visible status, not a crash.
var ErrExtractorNotFound = errors.New("frame extractor executable not found")

// Extractor builds supervised decode commands around a resolved ffmpeg
// binary.
type Extractor struct {
	bin string
}

// NewExtractor resolves the ffmpeg executable once. An empty path
// falls back to "ffmpeg" on PATH.
func NewExtractor(path string) (*Extractor, error) {
	if path == "" {
		path = "ffmpeg"
	}
	bin, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrExtractorNotFound, path)
	}
	return &Extractor{bin: bin}, nil
}

// Bin returns the resolved executable path.
func (e *Extractor) Bin() string { return e.bin }

// command builds the decode invocation: sequential JPEGs numbered from
// 000000 into outDir at the target fps, bounded to totalFrames when
// known, with machine-readable key=value progress on stdout.
func (e *Extractor) command(videoPath string, fps float64, totalFrames int, outDir string) *exec.Cmd {
	args := []string{
		"-y",
		"-v", "error",
		"-nostats",
		"-progress", "pipe:1",
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%g", fps),
	}
	if totalFrames > 0 {
		args = append(args, "-frames:v", strconv.Itoa(totalFrames))
	}
	args = append(args,
		"-start_number", "0",
		"-q:v", "2",
		filepath.Join(outDir, "%06d.jpg"),
	)
	return exec.Command(e.bin, args...)
}
