package detector

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

// idleShutdown is how long the inference process may sit unused before it
// is stopped to free GPU/CPU memory. It restarts lazily on the next call.
const idleShutdown = 30 * time.Second

// YOLOConfig holds options for the local YOLO detector.
type YOLOConfig struct {
	// ModelPath is the weights file handed to the inference service.
	ModelPath string

	// MinConfidence filters detections below this score.
	MinConfidence float64
}

// YOLODetector implements Detector using a local YOLO model served by a
// Python subprocess. Frames are streamed to the service as length-prefixed
// JPEG payloads; detections come back as one JSON line per frame.
type YOLODetector struct {
	config    YOLOConfig
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// NewYOLODetector creates a local YOLO detector. The inference process is
// started lazily on the first Detect call.
func NewYOLODetector(config YOLOConfig) (*YOLODetector, error) {
	if findInferenceScript() == "" {
		return nil, fmt.Errorf("yolo_service.py not found")
	}
	if config.ModelPath == "" {
		config.ModelPath = "yolov8_medical_box_best.pt"
	}

	return &YOLODetector{config: config}, nil
}

// Detect analyzes a frame with the local model.
func (d *YOLODetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	data, err := encodeJPEG(img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	// Read JSON response
	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Detections []jsonDetection `json:"detections"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	detections := make([]Detection, 0, len(response.Detections))
	for _, jd := range response.Detections {
		det := jd.toDetection()
		if det.Score < d.config.MinConfidence {
			continue
		}
		detections = append(detections, det)
	}

	d.resetIdleTimer()

	return detections, nil
}

// Close shuts down the inference process.
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

func (d *YOLODetector) ensureStarted() error {
	if d.started {
		return nil
	}

	scriptPath := findInferenceScript()
	if scriptPath == "" {
		return fmt.Errorf("yolo_service.py not found")
	}

	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, scriptPath, "--model", d.config.ModelPath)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start yolo service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	return nil
}

func (d *YOLODetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *YOLODetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(idleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func findInferenceScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/yolo_service.py",
		"../scripts/yolo_service.py",
		filepath.Join(execDir, "scripts/yolo_service.py"),
		filepath.Join(os.Getenv("HOME"), ".stockvision/scripts/yolo_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".stockvision/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonDetection is the wire form produced by the Python service.
type jsonDetection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Box   [4]int  `json:"box"`
}

func (jd jsonDetection) toDetection() Detection {
	label := jd.Label
	if label == "" {
		label = DefaultConfig().Label
	}
	return Detection{
		Label: label,
		Score: jd.Score,
		Box: BoundingBox{
			X1: jd.Box[0],
			Y1: jd.Box[1],
			X2: jd.Box[2],
			Y2: jd.Box[3],
		},
	}
}
