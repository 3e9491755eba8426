// Package api provides HTTP API handlers for the stockvision dashboard.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ayusman/stockvision/internal/analysis"
	"github.com/ayusman/stockvision/internal/export"
	"github.com/ayusman/stockvision/internal/report"
	"github.com/ayusman/stockvision/internal/store"
	"github.com/ayusman/stockvision/internal/video"
)

// allowedExtensions are the container formats accepted for upload.
var allowedExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".ogg":  true,
}

// Analyzer runs the detection pipeline over an uploaded video file.
type Analyzer interface {
	Analyze(ctx context.Context, path string, intervalSeconds float64) (*analysis.Run, error)
}

// AnalysesHandler handles HTTP requests for analysis run resources.
type AnalysesHandler struct {
	store           *store.Store
	analyzer        Analyzer
	maxUploadBytes  int64
	defaultInterval float64
	log             *slog.Logger
}

// AnalysesConfig configures an AnalysesHandler.
type AnalysesConfig struct {
	Store           *store.Store
	Analyzer        Analyzer
	MaxUploadBytes  int64
	DefaultInterval float64
	Logger          *slog.Logger
}

// NewAnalysesHandler creates a handler for /api/analyses routes.
func NewAnalysesHandler(cfg AnalysesConfig) *AnalysesHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &AnalysesHandler{
		store:           cfg.Store,
		analyzer:        cfg.Analyzer,
		maxUploadBytes:  cfg.MaxUploadBytes,
		defaultInterval: cfg.DefaultInterval,
		log:             cfg.Logger,
	}
}

// ServeHTTP routes requests under /api/analyses.
func (h *AnalysesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/analyses")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id, rest, _ := strings.Cut(path, "/")

	switch rest {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "export":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.exportCSV(w, r, id)
	case "chart":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.chart(w, r, id)
	case "frames":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.frames(w, r, id)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *AnalysesHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	runs, err := h.store.Runs().List(limit)
	if err != nil {
		h.log.Error("list analyses", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if runs == nil {
		runs = []*analysis.Run{}
	}

	writeJSON(w, http.StatusOK, runs)
}

func (h *AnalysesHandler) get(w http.ResponseWriter, _ *http.Request, id string) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		h.log.Error("get analysis", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

func (h *AnalysesHandler) delete(w http.ResponseWriter, _ *http.Request, id string) {
	deleted, err := h.store.Runs().Delete(id)
	if err != nil {
		h.log.Error("delete analysis", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete analysis")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// create accepts a multipart video upload, runs the pipeline over it and
// persists the completed run. The uploaded file only lives in a temp
// directory for the duration of the analysis.
func (h *AnalysesHandler) create(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil {
		writeError(w, http.StatusServiceUnavailable, "analysis backend not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing video file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedExtensions[ext] {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", ext))
		return
	}

	interval := h.defaultInterval
	if v := r.FormValue("interval"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "interval must be a positive number of seconds")
			return
		}
		interval = parsed
	}

	tmpDir, err := os.MkdirTemp("", "stockvision-upload-*")
	if err != nil {
		h.log.Error("create temp dir", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(header.Filename))
	dst, err := os.Create(tmpPath)
	if err != nil {
		h.log.Error("stage upload", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		h.log.Error("stage upload", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to stage upload")
		return
	}
	dst.Close()

	run, err := h.analyzer.Analyze(r.Context(), tmpPath, interval)
	if err != nil {
		if errors.Is(err, video.ErrSourceUnavailable) || errors.Is(err, video.ErrInvalidInterval) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.log.Error("analyze upload", "file", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	if err := h.store.Runs().Save(run); err != nil {
		// The in-memory run is complete; only durability failed.
		h.log.Error("persist analysis", "run_id", run.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "analysis completed but could not be saved")
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

func (h *AnalysesHandler) exportCSV(w http.ResponseWriter, _ *http.Request, id string) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		h.log.Error("export analysis", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", export.Filename(run)))

	if err := export.WriteCSV(w, run.Results); err != nil {
		h.log.Error("write csv", "id", id, "error", err)
	}
}

func (h *AnalysesHandler) chart(w http.ResponseWriter, _ *http.Request, id string) {
	run, err := h.store.Runs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "analysis not found")
			return
		}
		h.log.Error("chart analysis", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderCountChart(w, run); err != nil {
		h.log.Error("render chart", "id", id, "error", err)
	}
}

func (h *AnalysesHandler) frames(w http.ResponseWriter, _ *http.Request, id string) {
	rows, err := h.store.Runs().GetFrameDetections(id)
	if err != nil {
		h.log.Error("frame detections", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load frame detections")
		return
	}
	if rows == nil {
		rows = []store.FrameDetectionRow{}
	}

	writeJSON(w, http.StatusOK, rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
