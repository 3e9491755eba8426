// Package detector provides object detection interfaces and backends for
// counting inventory items in video frames.
package detector

import (
	"context"
	"image"
)

// BoundingBox is an axis-aligned pixel rectangle with X1 < X2 and Y1 < Y2.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Area returns the box area in pixels.
func (b BoundingBox) Area() int {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w < 0 {
		w = -w
	}
	if h < 0 {
		h = -h
	}
	return w * h
}

// Detection is one labelled, scored, localised object found in a frame.
// Values are immutable once returned by a Detector.
type Detection struct {
	Label string      `json:"label"`
	Score float64     `json:"score"`
	Box   BoundingBox `json:"bounding_box"`
}

// Detector defines the interface for object detection backends.
// Implementations must never mutate the input image and must return an
// empty slice, not an error, when no objects are found.
type Detector interface {
	// Detect analyzes a frame and returns the objects found in it.
	Detect(ctx context.Context, img image.Image) ([]Detection, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options shared by detection backends.
type Config struct {
	// Label is the object class being counted.
	Label string

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Label:         "medibox",
		MinConfidence: 0.5,
	}
}

// FilterByConfidence returns the detections whose score meets the threshold.
// The input slice is not modified.
func FilterByConfidence(detections []Detection, minConfidence float64) []Detection {
	filtered := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if d.Score >= minConfidence {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
