package video

import (
	"errors"
	"fmt"
	"testing"
)

func collectFrames(t *testing.T, src Source, interval float64) []Frame {
	t.Helper()

	var frames []Frame
	err := NewSampler(nil).Sample(src, interval, func(f Frame) error {
		frames = append(frames, f)
		return nil
	})
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	return frames
}

func TestSampler_FiveSecondInterval(t *testing.T) {
	// 30fps video with 750 frames sampled every 5s
	src := NewMockSource(30, 750)

	frames := collectFrames(t, src, 5)

	wantIndices := []int{0, 150, 300, 450, 600}
	wantTimestamps := []float64{0, 5, 10, 15, 20}

	if len(frames) != len(wantIndices) {
		t.Fatalf("got %d frames, want %d", len(frames), len(wantIndices))
	}

	for i, f := range frames {
		if f.Index != wantIndices[i] {
			t.Errorf("frame %d index = %d, want %d", i, f.Index, wantIndices[i])
		}
		if f.Timestamp != wantTimestamps[i] {
			t.Errorf("frame %d timestamp = %v, want %v", i, f.Timestamp, wantTimestamps[i])
		}
		if f.Image == nil {
			t.Errorf("frame %d has nil image", i)
		}
	}

	if src.IsOpen() {
		t.Error("source should be closed after sampling")
	}
}

func TestSampler_IndicesStrictlyIncreasingFromZero(t *testing.T) {
	tests := []struct {
		name     string
		fps      float64
		frames   int
		interval float64
	}{
		{name: "30fps every 5s", fps: 30, frames: 900, interval: 5},
		{name: "24fps every 2s", fps: 24, frames: 1000, interval: 2},
		{name: "29.97fps every 1s", fps: 29.97, frames: 300, interval: 1},
		{name: "high fps tiny interval", fps: 120, frames: 50, interval: 0.001},
		{name: "single frame", fps: 30, frames: 1, interval: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := collectFrames(t, NewMockSource(tt.fps, tt.frames), tt.interval)

			if len(frames) == 0 {
				t.Fatal("expected at least one frame on success")
			}
			if frames[0].Index != 0 {
				t.Errorf("first index = %d, want 0", frames[0].Index)
			}

			for i := 1; i < len(frames); i++ {
				if frames[i].Index <= frames[i-1].Index {
					t.Errorf("indices not strictly increasing: %d then %d",
						frames[i-1].Index, frames[i].Index)
				}
				if frames[i].Timestamp < frames[i-1].Timestamp {
					t.Errorf("timestamps decreased: %v then %v",
						frames[i-1].Timestamp, frames[i].Timestamp)
				}
			}
		})
	}
}

func TestSampler_StepFloorsAtOne(t *testing.T) {
	// fps * interval rounds to 0; every frame must be sampled instead of
	// looping forever on index 0.
	src := NewMockSource(1, 4)

	frames := collectFrames(t, src, 0.2)

	if len(frames) != 4 {
		t.Fatalf("got %d frames, want 4", len(frames))
	}
}

func TestSampler_Deterministic(t *testing.T) {
	first := collectFrames(t, NewMockSource(25, 500), 3)
	second := collectFrames(t, NewMockSource(25, 500), 3)

	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Index != second[i].Index || first[i].Timestamp != second[i].Timestamp {
			t.Errorf("frame %d differs between runs", i)
		}
	}
}

func TestSampler_InvalidInterval(t *testing.T) {
	src := NewMockSource(30, 100)

	for _, interval := range []float64{0, -1, -0.5} {
		err := NewSampler(nil).Sample(src, interval, func(Frame) error { return nil })
		if !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("interval %v: error = %v, want ErrInvalidInterval", interval, err)
		}
	}

	if src.IsOpen() {
		t.Error("source must not be opened for an invalid interval")
	}
}

func TestSampler_EmptySource(t *testing.T) {
	tests := []struct {
		name   string
		fps    float64
		frames int
	}{
		{name: "zero frames", fps: 30, frames: 0},
		{name: "zero fps", fps: 0, frames: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewMockSource(tt.fps, tt.frames)
			err := NewSampler(nil).Sample(src, 5, func(Frame) error { return nil })
			if !errors.Is(err, ErrSourceUnavailable) {
				t.Errorf("error = %v, want ErrSourceUnavailable", err)
			}
			if src.IsOpen() {
				t.Error("source should be closed after failure")
			}
		})
	}
}

func TestSampler_FirstFrameUnreadable(t *testing.T) {
	src := NewMockSource(30, 300)
	src.FailAt(0, fmt.Errorf("decode error"))

	err := NewSampler(nil).Sample(src, 5, func(Frame) error { return nil })
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Errorf("error = %v, want ErrSourceUnavailable", err)
	}
}

func TestSampler_CallbackErrorStopsLoop(t *testing.T) {
	src := NewMockSource(30, 900)
	stop := errors.New("stop")

	calls := 0
	err := NewSampler(nil).Sample(src, 5, func(Frame) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})

	if !errors.Is(err, stop) {
		t.Errorf("error = %v, want the callback error", err)
	}
	if calls != 2 {
		t.Errorf("callback called %d times, want 2", calls)
	}
	if src.IsOpen() {
		t.Error("source should be closed after callback error")
	}
}
