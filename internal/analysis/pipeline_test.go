package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/stockvision/internal/detector"
	"github.com/ayusman/stockvision/internal/video"
)

func detections(n int) []detector.Detection {
	out := make([]detector.Detection, n)
	for i := range out {
		out[i] = detector.Detection{
			Label: "medibox",
			Score: 0.9,
			Box:   detector.BoundingBox{X1: i * 10, Y1: 0, X2: i*10 + 5, Y2: 5},
		}
	}
	return out
}

func TestPipeline_Run(t *testing.T) {
	// 30fps, 750 frames, 5s interval: frames 0, 150, 300, 450, 600
	src := video.NewMockSource(30, 750)

	mock := detector.NewMockDetector()
	mock.Enqueue(
		detector.MockResponse{Detections: detections(2)},
		detector.MockResponse{Detections: detections(0)},
		detector.MockResponse{Detections: detections(3)},
		detector.MockResponse{Detections: detections(1)},
		detector.MockResponse{Detections: detections(1)},
	)

	p := NewPipeline(mock, nil)

	run, err := p.Run(context.Background(), src, RunOptions{
		SourceName:      "warehouse.mp4",
		FileSizeBytes:   1024,
		IntervalSeconds: 5,
	})
	require.NoError(t, err)

	require.Len(t, run.Results, 5)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "warehouse.mp4", run.SourceName)
	assert.Equal(t, int64(1024), run.FileSizeBytes)
	assert.Equal(t, 5.0, run.IntervalSeconds)
	assert.False(t, run.CreatedAt.IsZero())

	assert.Equal(t, 7, run.Summary.TotalDetections)
	assert.Equal(t, 3, run.Summary.MaxInFrame)
	assert.Equal(t, 0, run.Summary.MinInFrame)
	assert.Equal(t, 0, run.Summary.DegradedFrames)

	// Results are ordered by frame index
	for i := 1; i < len(run.Results); i++ {
		assert.Greater(t, run.Results[i].FrameIndex, run.Results[i-1].FrameIndex)
	}

	// Counts always match the detections actually recorded
	for _, fr := range run.Results {
		assert.Equal(t, len(fr.Detections), fr.Count)
	}
}

func TestPipeline_ZeroDetectionFrame(t *testing.T) {
	src := video.NewMockSource(30, 60)

	mock := detector.NewMockDetector() // always returns zero detections
	p := NewPipeline(mock, nil)

	run, err := p.Run(context.Background(), src, RunOptions{IntervalSeconds: 1})
	require.NoError(t, err)

	require.Len(t, run.Results, 2)
	for _, fr := range run.Results {
		assert.Equal(t, 0, fr.Count)
		assert.NotNil(t, fr.Detections)
		assert.False(t, fr.Degraded)
	}
	assert.Equal(t, 0, run.Summary.TotalDetections)
	assert.Equal(t, 0.0, run.Summary.DetectionRate)
}

func TestPipeline_DetectorFailureDegradesFrame(t *testing.T) {
	// One frame's backend failure must not abort the run.
	src := video.NewMockSource(30, 750)

	mock := detector.NewMockDetector()
	mock.Enqueue(
		detector.MockResponse{Detections: detections(2)},
		detector.MockResponse{Err: &detector.BackendError{Status: 500, Message: "boom"}},
		detector.MockResponse{Detections: detections(3)},
		detector.MockResponse{Detections: detections(1)},
		detector.MockResponse{Detections: detections(2)},
	)

	p := NewPipeline(mock, nil)

	run, err := p.Run(context.Background(), src, RunOptions{IntervalSeconds: 5})
	require.NoError(t, err)
	require.Len(t, run.Results, 5)

	failed := run.Results[1]
	assert.Equal(t, 0, failed.Count)
	assert.Empty(t, failed.Detections)
	assert.True(t, failed.Degraded)

	assert.Equal(t, 8, run.Summary.TotalDetections)
	assert.Equal(t, 1, run.Summary.DegradedFrames)

	// The other frames processed normally
	assert.Equal(t, 2, run.Results[0].Count)
	assert.Equal(t, 3, run.Results[2].Count)
}

func TestPipeline_SourceFailureIsFatal(t *testing.T) {
	src := video.NewMockSource(0, 0)
	p := NewPipeline(detector.NewMockDetector(), nil)

	run, err := p.Run(context.Background(), src, RunOptions{IntervalSeconds: 5})

	assert.Nil(t, run)
	assert.ErrorIs(t, err, video.ErrSourceUnavailable)
}

func TestPipeline_InvalidInterval(t *testing.T) {
	src := video.NewMockSource(30, 100)
	p := NewPipeline(detector.NewMockDetector(), nil)

	run, err := p.Run(context.Background(), src, RunOptions{IntervalSeconds: 0})

	assert.Nil(t, run)
	assert.ErrorIs(t, err, video.ErrInvalidInterval)
	assert.False(t, src.IsOpen(), "no I/O should happen for an invalid interval")
}

func TestPipeline_ContextCancellation(t *testing.T) {
	src := video.NewMockSource(30, 900)
	mock := detector.NewMockDetector()
	p := NewPipeline(mock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := p.Run(ctx, src, RunOptions{IntervalSeconds: 5})

	assert.Nil(t, run)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_ProgressEvents(t *testing.T) {
	src := video.NewMockSource(30, 750)
	mock := detector.NewMockDetector()
	mock.SetDetections(detections(2))

	p := NewPipeline(mock, nil)

	var events []Progress
	p.OnProgress = func(ev Progress) { events = append(events, ev) }

	run, err := p.Run(context.Background(), src, RunOptions{IntervalSeconds: 5})
	require.NoError(t, err)

	require.Len(t, events, len(run.Results))
	for i, ev := range events {
		assert.Equal(t, run.Results[i].FrameIndex, ev.FrameIndex)
		assert.Equal(t, 2, ev.Count)
		assert.Equal(t, i+1, ev.Processed)
	}
}

func TestPipeline_SummaryConsistency(t *testing.T) {
	src := video.NewMockSource(24, 480)
	mock := detector.NewMockDetector()
	mock.Enqueue(
		detector.MockResponse{Detections: detections(4)},
		detector.MockResponse{Err: errors.New("transient")},
	)
	mock.SetDetections(detections(1))

	p := NewPipeline(mock, nil)

	run, err := p.Run(context.Background(), src, RunOptions{IntervalSeconds: 2})
	require.NoError(t, err)

	sum := 0
	for _, fr := range run.Results {
		sum += fr.Count
	}
	assert.Equal(t, sum, run.Summary.TotalDetections)
	assert.Equal(t, len(run.Results), run.Summary.TotalFrames)
}
