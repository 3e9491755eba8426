// Package video provides video file access and interval frame sampling using GoCV (OpenCV).
package video

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// ErrSourceUnavailable is returned when a video cannot be opened or contains no frames.
var ErrSourceUnavailable = errors.New("video source unavailable")

// Source defines the interface for random-access video frame sources.
type Source interface {
	Open() error
	Close() error
	FPS() float64
	FrameCount() int
	ReadFrameAt(index int) (image.Image, error)
	IsOpen() bool
}

// fileSource reads frames from a video container on disk using GoCV.
type fileSource struct {
	path    string
	capture *gocv.VideoCapture
	mu      sync.Mutex
	open    bool
}

// NewFileSource creates a Source backed by the video file at path.
// The file is not opened until Open is called.
func NewFileSource(path string) Source {
	return &fileSource{path: path}
}

// Open opens the underlying video file for reading.
func (f *fileSource) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.open {
		return nil
	}

	capture, err := gocv.VideoCaptureFile(f.path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, f.path, err)
	}

	f.capture = capture
	f.open = true

	return nil
}

// Close releases the video capture handle.
func (f *fileSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open || f.capture == nil {
		f.open = false
		return nil
	}

	err := f.capture.Close()
	f.capture = nil
	f.open = false

	return err
}

// FPS returns the frame rate reported by the container.
func (f *fileSource) FPS() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		return 0
	}
	return f.capture.Get(gocv.VideoCaptureFPS)
}

// FrameCount returns the total number of frames reported by the container.
func (f *fileSource) FrameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open {
		return 0
	}
	return int(f.capture.Get(gocv.VideoCaptureFrameCount))
}

// ReadFrameAt seeks to the given frame index and decodes a single frame.
// The Mat is converted to an image.Image and released before returning so
// no native memory outlives the call.
func (f *fileSource) ReadFrameAt(index int) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.open || f.capture == nil {
		return nil, fmt.Errorf("%w: source not open", ErrSourceUnavailable)
	}

	f.capture.Set(gocv.VideoCapturePosFrames, float64(index))

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := f.capture.Read(&mat); !ok {
		return nil, fmt.Errorf("failed to read frame %d", index)
	}
	if mat.Empty() {
		return nil, fmt.Errorf("frame %d is empty", index)
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame %d: %w", index, err)
	}

	return img, nil
}

// IsOpen returns true if the source is currently open.
func (f *fileSource) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Info holds container metadata for a video file.
type Info struct {
	FPS         float64 `json:"fps"`
	FrameCount  int     `json:"frame_count"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	DurationSec float64 `json:"duration_seconds"`
}

// Probe opens a video file and returns its container metadata.
func Probe(path string) (Info, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: open %s: %v", ErrSourceUnavailable, path, err)
	}
	defer capture.Close()

	info := Info{
		FPS:        capture.Get(gocv.VideoCaptureFPS),
		FrameCount: int(capture.Get(gocv.VideoCaptureFrameCount)),
		Width:      int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
	if info.FPS > 0 {
		info.DurationSec = float64(info.FrameCount) / info.FPS
	}

	return info, nil
}
