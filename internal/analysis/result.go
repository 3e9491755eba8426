// Package analysis runs the frame-sampling and detection pipeline and
// aggregates per-frame detections into run-level statistics.
package analysis

import (
	"time"

	"github.com/ayusman/stockvision/internal/detector"
)

// FrameResult holds the detections for one sampled frame.
//
// Degraded marks a zero count that came from a detection backend failure
// rather than a frame with no objects, so operators can tell backend
// reliability apart from genuinely empty frames.
type FrameResult struct {
	FrameIndex int                  `json:"frame_index"`
	Timestamp  float64              `json:"timestamp"`
	Detections []detector.Detection `json:"detections"`
	Count      int                  `json:"count"`
	Degraded   bool                 `json:"degraded,omitempty"`
}

// Summary holds aggregate statistics derived from a run's frame results.
// All fields are computed from the per-frame counts and never mutated
// independently.
type Summary struct {
	TotalFrames     int     `json:"total_frames"`
	TotalDetections int     `json:"total_detections"`
	AvgPerFrame     float64 `json:"avg_per_frame"`
	MaxInFrame      int     `json:"max_in_frame"`
	MinInFrame      int     `json:"min_in_frame"`
	DetectionRate   float64 `json:"detection_rate"`
	DegradedFrames  int     `json:"degraded_frames"`
}

// Run is one complete pipeline execution over one video: the per-frame
// results plus the derived summary. A Run is immutable once created.
type Run struct {
	ID              string        `json:"id"`
	SourceName      string        `json:"source_name"`
	FileSizeBytes   int64         `json:"file_size_bytes"`
	IntervalSeconds float64       `json:"interval_seconds"`
	Results         []FrameResult `json:"results"`
	Summary         Summary       `json:"summary"`
	ProcessingTime  time.Duration `json:"processing_time"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Summarize computes aggregate statistics over an ordered sequence of
// frame results. It is a pure function: an empty input yields an all-zero
// summary, not an error.
func Summarize(results []FrameResult) Summary {
	var s Summary
	s.TotalFrames = len(results)
	if s.TotalFrames == 0 {
		return s
	}

	s.MinInFrame = results[0].Count
	framesWithObjects := 0

	for _, r := range results {
		s.TotalDetections += r.Count
		if r.Count > s.MaxInFrame {
			s.MaxInFrame = r.Count
		}
		if r.Count < s.MinInFrame {
			s.MinInFrame = r.Count
		}
		if r.Count > 0 {
			framesWithObjects++
		}
		if r.Degraded {
			s.DegradedFrames++
		}
	}

	s.AvgPerFrame = float64(s.TotalDetections) / float64(s.TotalFrames)
	s.DetectionRate = float64(framesWithObjects) / float64(s.TotalFrames)

	return s
}

// DetectionStats summarises the detections within a single frame.
type DetectionStats struct {
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avg_confidence"`
	MinConfidence float64 `json:"min_confidence"`
	MaxConfidence float64 `json:"max_confidence"`
	TotalArea     int     `json:"total_area"`
	AvgArea       float64 `json:"avg_area"`
}

// StatsFor computes per-frame confidence and box-area statistics.
func StatsFor(detections []detector.Detection) DetectionStats {
	var s DetectionStats
	s.Count = len(detections)
	if s.Count == 0 {
		return s
	}

	s.MinConfidence = detections[0].Score
	var scoreSum float64

	for _, d := range detections {
		scoreSum += d.Score
		if d.Score > s.MaxConfidence {
			s.MaxConfidence = d.Score
		}
		if d.Score < s.MinConfidence {
			s.MinConfidence = d.Score
		}
		s.TotalArea += d.Box.Area()
	}

	s.AvgConfidence = scoreSum / float64(s.Count)
	s.AvgArea = float64(s.TotalArea) / float64(s.Count)

	return s
}
