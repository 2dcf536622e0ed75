package caption

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qi7876/CaptionCheck/internal/dataset"
	"github.com/qi7876/CaptionCheck/pkg/jsonio"
)

// PreprocessVersion is stamped into each item's status file so a future
// format change can force a re-run.
const PreprocessVersion = 1

const (
	StatusSkipped   = "skipped"
	StatusProcessed = "processed"
	StatusError     = "error"
)

// PreprocessResult reports the outcome of preprocessing one item.
type PreprocessResult struct {
	Item    dataset.Item
	Status  string
	Message string
}

// PreprocessItem normalizes one caption record before review: it adds
// the reviewed flag if missing and rebases span frame numbers onto the
// clip when they still carry the capture pipeline's absolute numbering.
// A present status file marks the item as already done.
func PreprocessItem(item dataset.Item) PreprocessResult {
	if _, err := Read(item.StatusPath); err == nil {
		return PreprocessResult{Item: item, Status: StatusSkipped, Message: "already preprocessed"}
	}

	record, err := Read(item.CaptionPath)
	if err != nil {
		return PreprocessResult{Item: item, Status: StatusError, Message: err.Error()}
	}

	startingFrame := record.OriginalStartingFrame()
	totalFrames := record.TotalFrames()
	spans := record.Spans()

	changed := false
	if !record.HasReviewed() {
		record.SetReviewed(false)
		changed = true
	}

	shifted := needsShift(spans, startingFrame, totalFrames)
	if shifted {
		for _, span := range spans {
			span["start_frame"] = float64(max(0, SpanStart(span)-startingFrame))
			span["end_frame"] = float64(max(0, SpanEnd(span)-startingFrame))
		}
		changed = true
	}

	if changed {
		if err := record.WriteAtomic(item.CaptionPath); err != nil {
			return PreprocessResult{Item: item, Status: StatusError, Message: err.Error()}
		}
	}

	status := map[string]any{
		"preprocess_version":      PreprocessVersion,
		"preprocessed_at":         time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		"original_starting_frame": startingFrame,
		"total_frames":            totalFrames,
		"shifted_spans":           shifted,
	}
	if err := jsonio.WriteAtomic(item.StatusPath, status); err != nil {
		return PreprocessResult{Item: item, Status: StatusError, Message: err.Error()}
	}
	return PreprocessResult{Item: item, Status: StatusProcessed, Message: "ok"}
}

// needsShift detects spans still numbered in the source video's frame
// space: their maximum end overshoots the clip length while every start
// sits at or above the capture offset. The ±2 slack absorbs boundary
// rounding by the capture pipeline.
func needsShift(spans []map[string]any, startingFrame, totalFrames int) bool {
	if len(spans) == 0 || startingFrame == 0 || totalFrames == 0 {
		return false
	}
	maxEnd := 0
	minStart := SpanStart(spans[0])
	for _, span := range spans {
		if end := SpanEnd(span); end > maxEnd {
			maxEnd = end
		}
		if start := SpanStart(span); start < minStart {
			minStart = start
		}
	}
	return maxEnd > totalFrames+2 && minStart >= startingFrame-2
}

// PreprocessAll runs PreprocessItem over every item with bounded
// concurrency, returning results in item order.
func PreprocessAll(ctx context.Context, items []dataset.Item, concurrency int) []PreprocessResult {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]PreprocessResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = PreprocessResult{Item: item, Status: StatusError, Message: err.Error()}
				return nil
			}
			results[i] = PreprocessItem(item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
