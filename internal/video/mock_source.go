package video

import (
	"fmt"
	"image"
	"image/color"
	"sync"
)

// MockSource is a synthetic Source for testing. It reports a configurable
// frame rate and frame count and renders flat-colour frames on demand.
type MockSource struct {
	fps        float64
	frameCount int
	width      int
	height     int

	mu      sync.Mutex
	open    bool
	readErr map[int]error
	Reads   []int
}

// NewMockSource creates a MockSource with the given frame rate and count.
func NewMockSource(fps float64, frameCount int) *MockSource {
	return &MockSource{
		fps:        fps,
		frameCount: frameCount,
		width:      64,
		height:     48,
		readErr:    make(map[int]error),
	}
}

func (m *MockSource) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	return nil
}

func (m *MockSource) FPS() float64 { return m.fps }

func (m *MockSource) FrameCount() int { return m.frameCount }

// FailAt makes ReadFrameAt return err for the given frame index.
func (m *MockSource) FailAt(index int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr[index] = err
}

// ReadFrameAt returns a synthetic frame whose shade encodes the index.
func (m *MockSource) ReadFrameAt(index int) (image.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.open {
		return nil, fmt.Errorf("%w: source not open", ErrSourceUnavailable)
	}
	if err, ok := m.readErr[index]; ok {
		return nil, err
	}
	if index < 0 || index >= m.frameCount {
		return nil, fmt.Errorf("frame %d out of range", index)
	}

	m.Reads = append(m.Reads, index)

	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	shade := uint8(index % 256)
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			img.SetRGBA(x, y, color.RGBA{R: shade, G: shade, B: shade, A: 255})
		}
	}

	return img, nil
}

func (m *MockSource) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}
