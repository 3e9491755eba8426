// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Detector backend names accepted in STOCKVISION_DETECTOR_BACKEND.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
	BackendMock   = "mock"
)

// Config holds all runtime settings. Every field has an environment
// variable and a default so the binary runs with no flags at all.
type Config struct {
	DBPath     string `env:"STOCKVISION_DB"`
	ListenAddr string `env:"STOCKVISION_ADDR" envDefault:":8080"`

	DetectorBackend string `env:"STOCKVISION_DETECTOR_BACKEND" envDefault:"local"`
	ModelPath       string `env:"STOCKVISION_MODEL_PATH" envDefault:"yolov8_medical_box_best.pt"`

	APIEndpoint       string        `env:"STOCKVISION_API_ENDPOINT" envDefault:"https://predict.app.landing.ai/inference/v1/predict"`
	APIEndpointID     string        `env:"STOCKVISION_API_ENDPOINT_ID"`
	APIKey            string        `env:"STOCKVISION_API_KEY"`
	RequestTimeout    time.Duration `env:"STOCKVISION_API_TIMEOUT" envDefault:"60s"`
	RequestsPerSecond float64       `env:"STOCKVISION_API_RATE_LIMIT" envDefault:"10"`

	IntervalSeconds float64 `env:"STOCKVISION_INTERVAL_SECONDS" envDefault:"5"`
	MinConfidence   float64 `env:"STOCKVISION_MIN_CONFIDENCE" envDefault:"0.5"`
	MaxUploadMB     int64   `env:"STOCKVISION_MAX_UPLOAD_MB" envDefault:"100"`

	LogLevel string `env:"STOCKVISION_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config and fills path defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if cfg.DBPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DBPath = filepath.Join(homeDir, ".stockvision", "stockvision.db")
	}

	switch cfg.DetectorBackend {
	case BackendLocal, BackendRemote, BackendMock:
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.DetectorBackend)
	}

	if cfg.IntervalSeconds <= 0 {
		return nil, fmt.Errorf("sampling interval must be positive, got %v", cfg.IntervalSeconds)
	}

	return cfg, nil
}

// PredictURL assembles the full remote prediction endpoint.
func (c *Config) PredictURL() string {
	if c.APIEndpointID == "" {
		return c.APIEndpoint
	}
	return fmt.Sprintf("%s?endpoint_id=%s", c.APIEndpoint, c.APIEndpointID)
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB * 1024 * 1024
}
