package detector

import (
	"context"
	"errors"
	"image"
	"testing"
)

func TestBoundingBox_Area(t *testing.T) {
	tests := []struct {
		name string
		box  BoundingBox
		want int
	}{
		{name: "simple", box: BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 5}, want: 50},
		{name: "offset", box: BoundingBox{X1: 100, Y1: 200, X2: 110, Y2: 220}, want: 200},
		{name: "degenerate", box: BoundingBox{X1: 5, Y1: 5, X2: 5, Y2: 5}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Area(); got != tt.want {
				t.Errorf("Area() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFilterByConfidence(t *testing.T) {
	detections := []Detection{
		{Label: "medibox", Score: 0.9},
		{Label: "medibox", Score: 0.5},
		{Label: "medibox", Score: 0.49},
		{Label: "medibox", Score: 0.1},
	}

	filtered := FilterByConfidence(detections, 0.5)

	if len(filtered) != 2 {
		t.Fatalf("got %d detections, want 2", len(filtered))
	}
	for _, d := range filtered {
		if d.Score < 0.5 {
			t.Errorf("detection with score %v survived the filter", d.Score)
		}
	}

	// Input must not be modified
	if len(detections) != 4 {
		t.Errorf("input slice was modified, len = %d", len(detections))
	}

	if got := FilterByConfidence(nil, 0.5); len(got) != 0 {
		t.Errorf("nil input: got %d detections, want 0", len(got))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Label == "" {
		t.Error("default label should not be empty")
	}
	if cfg.MinConfidence <= 0 || cfg.MinConfidence > 1 {
		t.Errorf("MinConfidence = %v, want value in (0, 1]", cfg.MinConfidence)
	}
}

func TestMockDetector_FixedResponse(t *testing.T) {
	m := NewMockDetector()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))

	got, err := m.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("fresh mock returned %d detections, want 0", len(got))
	}

	want := []Detection{{Label: "medibox", Score: 0.8, Box: BoundingBox{X1: 1, Y1: 2, X2: 3, Y2: 4}}}
	m.SetDetections(want)

	got, err = m.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("Detect() = %v, want %v", got, want)
	}
}

func TestMockDetector_Queue(t *testing.T) {
	m := NewMockDetector()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	backendErr := errors.New("backend down")

	m.Enqueue(
		MockResponse{Detections: []Detection{{Score: 0.9}, {Score: 0.8}}},
		MockResponse{Err: backendErr},
		MockResponse{Detections: []Detection{{Score: 0.7}}},
	)

	first, err := m.Detect(context.Background(), img)
	if err != nil || len(first) != 2 {
		t.Fatalf("first call = (%v, %v), want 2 detections", first, err)
	}

	if _, err := m.Detect(context.Background(), img); !errors.Is(err, backendErr) {
		t.Fatalf("second call error = %v, want backend error", err)
	}

	third, err := m.Detect(context.Background(), img)
	if err != nil || len(third) != 1 {
		t.Fatalf("third call = (%v, %v), want 1 detection", third, err)
	}

	if m.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", m.Calls())
	}
}
