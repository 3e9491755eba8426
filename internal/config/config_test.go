package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, BackendLocal, cfg.DetectorBackend)
	assert.Equal(t, 5.0, cfg.IntervalSeconds)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, int64(100), cfg.MaxUploadMB)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "custom.db")
	t.Setenv("STOCKVISION_DB", dbPath)
	t.Setenv("STOCKVISION_DETECTOR_BACKEND", "remote")
	t.Setenv("STOCKVISION_API_KEY", "secret")
	t.Setenv("STOCKVISION_INTERVAL_SECONDS", "2.5")
	t.Setenv("STOCKVISION_API_RATE_LIMIT", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dbPath, cfg.DBPath)
	assert.Equal(t, BackendRemote, cfg.DetectorBackend)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, 2.5, cfg.IntervalSeconds)
	assert.Equal(t, 3.0, cfg.RequestsPerSecond)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("STOCKVISION_DETECTOR_BACKEND", "quantum")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("STOCKVISION_INTERVAL_SECONDS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestPredictURL(t *testing.T) {
	cfg := &Config{APIEndpoint: "https://api.example.test/predict"}
	assert.Equal(t, "https://api.example.test/predict", cfg.PredictURL())

	cfg.APIEndpointID = "abc-123"
	assert.Equal(t, "https://api.example.test/predict?endpoint_id=abc-123", cfg.PredictURL())
}

func TestMaxUploadBytes(t *testing.T) {
	cfg := &Config{MaxUploadMB: 100}
	assert.Equal(t, int64(100<<20), cfg.MaxUploadBytes())
}
