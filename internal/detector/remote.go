package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRequestTimeout bounds a single remote detection call.
const DefaultRequestTimeout = 60 * time.Second

// jpegQuality matches the quality the upstream API was tuned against.
const jpegQuality = 95

// BackendError reports a failed remote detection call: a non-success HTTP
// status or a response body that could not be parsed.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("detection backend: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("detection backend: %s", e.Message)
}

// RemoteConfig holds connection settings for a remote detection API.
type RemoteConfig struct {
	// Endpoint is the full prediction URL, including any endpoint id.
	Endpoint string

	// APIKey is sent as the "apikey" request header.
	APIKey string

	// Timeout bounds each request. Zero means DefaultRequestTimeout.
	Timeout time.Duration

	// RequestsPerSecond throttles calls with a token bucket so the backend
	// is not overwhelmed during a run. Zero disables throttling.
	RequestsPerSecond float64
}

// RemoteDetector sends frames to a hosted detection API over HTTP.
type RemoteDetector struct {
	config  RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewRemoteDetector creates a detector backed by a remote API.
func NewRemoteDetector(config RemoteConfig, logger *slog.Logger) (*RemoteDetector, error) {
	if config.Endpoint == "" {
		return nil, errors.New("remote detector: endpoint is required")
	}
	if config.APIKey == "" {
		return nil, errors.New("remote detector: api key is required")
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &RemoteDetector{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: limiter,
		log:     logger,
	}, nil
}

// remotePrediction mirrors one entry of the API's backbonepredictions map.
type remotePrediction struct {
	LabelName   string  `json:"labelName"`
	Score       float64 `json:"score"`
	Coordinates struct {
		Xmin int `json:"xmin"`
		Ymin int `json:"ymin"`
		Xmax int `json:"xmax"`
		Ymax int `json:"ymax"`
	} `json:"coordinates"`
}

// Detect encodes the frame as JPEG, posts it to the API and parses the
// structured response into detections. Zero predictions yield an empty
// slice; transport, status and parse failures yield a *BackendError.
func (d *RemoteDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, contentType, err := encodeFramePayload(img)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("apikey", d.config.APIKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &BackendError{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &BackendError{Status: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &BackendError{Status: resp.StatusCode, Message: string(raw)}
	}

	var parsed struct {
		BackbonePredictions map[string]remotePrediction `json:"backbonepredictions"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &BackendError{Status: resp.StatusCode, Message: fmt.Sprintf("malformed payload: %v", err)}
	}

	// Map iteration order is random; sort ids so a frame's detections come
	// back in a stable order.
	ids := make([]string, 0, len(parsed.BackbonePredictions))
	for id := range parsed.BackbonePredictions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	detections := make([]Detection, 0, len(ids))
	for _, id := range ids {
		p := parsed.BackbonePredictions[id]
		label := p.LabelName
		if label == "" {
			label = DefaultConfig().Label
		}
		detections = append(detections, Detection{
			Label: label,
			Score: p.Score,
			Box: BoundingBox{
				X1: p.Coordinates.Xmin,
				Y1: p.Coordinates.Ymin,
				X2: p.Coordinates.Xmax,
				Y2: p.Coordinates.Ymax,
			},
		})
	}

	d.log.Debug("remote detection complete", "detections", len(detections))
	return detections, nil
}

// Close is a no-op; the HTTP client holds no per-detector resources.
func (d *RemoteDetector) Close() error {
	return nil
}

// encodeFramePayload builds a multipart body carrying the frame as a JPEG
// file part named "file".
func encodeFramePayload(img image.Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, "", err
	}
	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return &buf, writer.FormDataContentType(), nil
}
