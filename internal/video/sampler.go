package video

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
)

// ErrInvalidInterval is returned when the sampling interval is not positive.
var ErrInvalidInterval = errors.New("sampling interval must be positive")

// Frame is a single sampled video frame. The pixel data is decoded eagerly
// so the underlying capture handle never outlives the sampling loop.
type Frame struct {
	Index     int
	Timestamp float64
	Image     image.Image
}

// FrameFunc receives sampled frames in index order. Returning an error
// stops the sampling loop and is passed through to the caller.
type FrameFunc func(Frame) error

// Sampler extracts frames from a video source at a fixed time interval.
type Sampler struct {
	log *slog.Logger
}

// NewSampler creates a Sampler that logs through the given logger.
func NewSampler(logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{log: logger}
}

// SampleFile opens the video at path and samples one frame every
// intervalSeconds, invoking fn for each frame in index order.
func (s *Sampler) SampleFile(path string, intervalSeconds float64, fn FrameFunc) error {
	return s.Sample(NewFileSource(path), intervalSeconds, fn)
}

// Sample walks the source emitting frames at indices 0, step, 2*step, ...
// where step = round(fps * intervalSeconds), floored at 1. The timestamp of
// each frame is index/fps. The source is closed on every return path.
//
// Returns ErrInvalidInterval before any I/O when intervalSeconds <= 0, and
// ErrSourceUnavailable when the source cannot be opened or reports no frames.
func (s *Sampler) Sample(src Source, intervalSeconds float64, fn FrameFunc) error {
	if intervalSeconds <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidInterval, intervalSeconds)
	}

	if err := src.Open(); err != nil {
		return err
	}
	defer src.Close()

	fps := src.FPS()
	totalFrames := src.FrameCount()
	if fps <= 0 || totalFrames <= 0 {
		return fmt.Errorf("%w: fps=%v frames=%d", ErrSourceUnavailable, fps, totalFrames)
	}

	step := int(math.Round(fps * intervalSeconds))
	if step < 1 {
		step = 1
	}

	s.log.Debug("sampling video",
		"fps", fps,
		"total_frames", totalFrames,
		"interval_seconds", intervalSeconds,
		"step", step,
	)

	sampled := 0
	for index := 0; index < totalFrames; index += step {
		img, err := src.ReadFrameAt(index)
		if err != nil {
			// A decoder hiccup past the first frame ends the sequence the
			// same way running off the end of the container does.
			if sampled > 0 {
				s.log.Warn("stopping early", "frame_index", index, "error", err)
				break
			}
			return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}

		frame := Frame{
			Index:     index,
			Timestamp: float64(index) / fps,
			Image:     img,
		}

		if err := fn(frame); err != nil {
			return err
		}
		sampled++
	}

	s.log.Debug("sampling complete", "frames_sampled", sampled)
	return nil
}
