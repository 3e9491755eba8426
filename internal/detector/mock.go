package detector

import (
	"context"
	"image"
	"sync"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results, either as a fixed
// response or as a per-call sequence.
type MockDetector struct {
	mu         sync.Mutex
	detections []Detection
	err        error
	queue      []MockResponse
	calls      int
}

// MockResponse is one scripted Detect result.
type MockResponse struct {
	Detections []Detection
	Err        error
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections returned by every Detect call.
func (m *MockDetector) SetDetections(detections []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = detections
}

// SetError sets the error returned by every Detect call.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Enqueue scripts responses consumed one per call before falling back to
// the fixed detections/error.
func (m *MockDetector) Enqueue(responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, responses...)
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the next scripted response, or the fixed detections/error.
func (m *MockDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next.Detections, next.Err
	}

	if m.err != nil {
		return nil, m.err
	}
	return m.detections, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}
