// Package timeline converts between discrete video frame indices and
// media time in milliseconds for a given frame rate.
package timeline

import "math"

// Rounding a frame boundary to integer milliseconds loses up to half a
// millisecond, which at fps f is f/2000 of a frame. The tolerance wins
// that back so FrameToTimeMs followed by TimeMsToFrame returns the
// original index for every realistic frame rate.
const boundaryTolerance = 0.5e-3

// FrameToTimeMs returns the media time of frame at the given rate,
// rounded to the nearest millisecond. A non-positive fps yields 0.
func FrameToTimeMs(frame int, fps float64) int64 {
	if fps <= 0 {
		return 0
	}
	return int64(math.Round(float64(frame) / fps * 1000.0))
}

// TimeMsToFrame returns the frame index containing the given media
// time. A non-positive fps yields 0.
func TimeMsToFrame(ms int64, fps float64) int {
	if fps <= 0 {
		return 0
	}
	return int(math.Floor(float64(ms)*fps/1000.0 + fps*boundaryTolerance + 1e-9))
}

// ClampFrame restricts frame to [0, totalFrames-1]. When totalFrames
// is zero the clip length is unknown and frame is only floored at 0.
func ClampFrame(frame, totalFrames int) int {
	if frame < 0 {
		return 0
	}
	if totalFrames > 0 && frame > totalFrames-1 {
		return totalFrames - 1
	}
	return frame
}
