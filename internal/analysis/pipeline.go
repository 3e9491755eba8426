package analysis

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/stockvision/internal/detector"
	"github.com/ayusman/stockvision/internal/video"
)

// Progress is emitted after each sampled frame is processed.
type Progress struct {
	FrameIndex int     `json:"frame_index"`
	Timestamp  float64 `json:"timestamp"`
	Count      int     `json:"count"`
	Degraded   bool    `json:"degraded"`
	Processed  int     `json:"processed"`
}

// Pipeline wires the frame sampler to a detection backend and produces
// completed analysis runs. Frames are processed sequentially in index
// order; nothing is persisted here.
type Pipeline struct {
	sampler  *video.Sampler
	detector detector.Detector
	log      *slog.Logger

	// OnProgress, when set, is called after every processed frame.
	OnProgress func(Progress)
}

// NewPipeline creates a Pipeline over the given detector.
func NewPipeline(det detector.Detector, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		sampler:  video.NewSampler(logger),
		detector: det,
		log:      logger,
	}
}

// RunOptions describes the source being analysed.
type RunOptions struct {
	SourceName      string
	FileSizeBytes   int64
	IntervalSeconds float64
}

// RunFile analyses the video at path, sampling one frame every
// intervalSeconds.
func (p *Pipeline) RunFile(ctx context.Context, path string, intervalSeconds float64) (*Run, error) {
	opts := RunOptions{
		SourceName:      filepath.Base(path),
		IntervalSeconds: intervalSeconds,
	}
	if fi, err := os.Stat(path); err == nil {
		opts.FileSizeBytes = fi.Size()
	}

	return p.Run(ctx, video.NewFileSource(path), opts)
}

// Run samples frames from src and detects objects in each one.
//
// A failure to open or read the source is fatal and no run is produced.
// A failed detection on a single frame degrades to a zero-count, Degraded
// frame result and the run continues; the failure is logged and counted in
// the summary so backend flakiness stays visible.
func (p *Pipeline) Run(ctx context.Context, src video.Source, opts RunOptions) (*Run, error) {
	start := time.Now()

	var results []FrameResult

	err := p.sampler.Sample(src, opts.IntervalSeconds, func(frame video.Frame) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		result := FrameResult{
			FrameIndex: frame.Index,
			Timestamp:  frame.Timestamp,
		}

		detections, err := p.detector.Detect(ctx, frame.Image)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			p.log.Warn("frame detection failed, recording zero count",
				"frame_index", frame.Index,
				"timestamp", frame.Timestamp,
				"error", err,
			)
			result.Detections = []detector.Detection{}
			result.Degraded = true
		} else {
			if detections == nil {
				detections = []detector.Detection{}
			}
			result.Detections = detections
			result.Count = len(detections)
		}

		results = append(results, result)

		if p.OnProgress != nil {
			p.OnProgress(Progress{
				FrameIndex: result.FrameIndex,
				Timestamp:  result.Timestamp,
				Count:      result.Count,
				Degraded:   result.Degraded,
				Processed:  len(results),
			})
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:              uuid.NewString(),
		SourceName:      opts.SourceName,
		FileSizeBytes:   opts.FileSizeBytes,
		IntervalSeconds: opts.IntervalSeconds,
		Results:         results,
		Summary:         Summarize(results),
		ProcessingTime:  time.Since(start),
		CreatedAt:       time.Now().UTC(),
	}

	p.log.Info("analysis complete",
		"run_id", run.ID,
		"source", run.SourceName,
		"frames", run.Summary.TotalFrames,
		"detections", run.Summary.TotalDetections,
		"degraded_frames", run.Summary.DegradedFrames,
		"elapsed", run.ProcessingTime,
	)

	return run, nil
}
