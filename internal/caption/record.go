// Package caption reads and writes the per-item caption record. The
// record is kept as a generic JSON mapping so fields this tool does not
// know about survive a round trip untouched; the review flow only ever
// mutates the reviewed flag, and the preprocess pass only the spans.
package caption

import (
	"github.com/qi7876/CaptionCheck/pkg/jsonio"
)

// DefaultFPS is assumed when the record carries no usable frame rate.
const DefaultFPS = 10.0

// Record is a caption record document.
type Record struct {
	data map[string]any
}

// Read loads the record at path.
func Read(path string) (*Record, error) {
	var data map[string]any
	if err := jsonio.Read(path, &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = make(map[string]any)
	}
	return &Record{data: data}, nil
}

// WriteAtomic replaces the record at path, preserving all fields.
func (r *Record) WriteAtomic(path string) error {
	return jsonio.WriteAtomic(path, r.data)
}

func (r *Record) info() map[string]any {
	m, _ := r.data["info"].(map[string]any)
	return m
}

func (r *Record) infoNumber(key string) (float64, bool) {
	info := r.info()
	if info == nil {
		return 0, false
	}
	n, ok := info[key].(float64)
	return n, ok
}

// FPS returns the clip frame rate, falling back to DefaultFPS when the
// field is absent or not a positive number.
func (r *Record) FPS() float64 {
	fps, ok := r.infoNumber("fps")
	if !ok || fps <= 0 {
		return DefaultFPS
	}
	return fps
}

// TotalFrames returns the clip length in frames, never negative.
func (r *Record) TotalFrames() int {
	n, ok := r.infoNumber("total_frames")
	if !ok || n < 0 {
		return 0
	}
	return int(n)
}

// OriginalStartingFrame returns the capture offset recorded by the
// upstream pipeline.
func (r *Record) OriginalStartingFrame() int {
	n, ok := r.infoNumber("original_starting_frame")
	if !ok || n < 0 {
		return 0
	}
	return int(n)
}

// Reviewed reports whether a human has signed off on this record.
func (r *Record) Reviewed() bool {
	reviewed, _ := r.data["reviewed"].(bool)
	return reviewed
}

// SetReviewed updates the reviewed flag in memory; it is only persisted
// by WriteAtomic.
func (r *Record) SetReviewed(reviewed bool) {
	r.data["reviewed"] = reviewed
}

// HasReviewed reports whether the reviewed field exists at all.
func (r *Record) HasReviewed() bool {
	_, ok := r.data["reviewed"]
	return ok
}

// Spans returns the timed caption spans. The returned maps alias the
// record; mutations are picked up by WriteAtomic.
func (r *Record) Spans() []map[string]any {
	raw, _ := r.data["spans"].([]any)
	spans := make([]map[string]any, 0, len(raw))
	for _, s := range raw {
		if m, ok := s.(map[string]any); ok {
			spans = append(spans, m)
		}
	}
	return spans
}

func spanFrame(span map[string]any, key string) int {
	n, _ := span[key].(float64)
	if n < 0 {
		return 0
	}
	return int(n)
}

// SpanStart returns the start_frame of a span, floored at 0.
func SpanStart(span map[string]any) int { return spanFrame(span, "start_frame") }

// SpanEnd returns the end_frame of a span, floored at 0.
func SpanEnd(span map[string]any) int { return spanFrame(span, "end_frame") }
