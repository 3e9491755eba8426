// Package server provides the HTTP server for the stockvision dashboard.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/stockvision/internal/server/api"
	"github.com/ayusman/stockvision/internal/store"
)

// Config holds the server configuration.
type Config struct {
	Store           *store.Store
	Analyzer        api.Analyzer
	Hub             *ProgressHub
	StaticDir       string
	MaxUploadBytes  int64
	DefaultInterval float64
	Logger          *slog.Logger
}

// Server represents the HTTP server for the stockvision dashboard.
type Server struct {
	config Config
	mux    *http.ServeMux
	log    *slog.Logger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		log:    config.Logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		analysesHandler := api.NewAnalysesHandler(api.AnalysesConfig{
			Store:           s.config.Store,
			Analyzer:        s.config.Analyzer,
			MaxUploadBytes:  s.config.MaxUploadBytes,
			DefaultInterval: s.config.DefaultInterval,
			Logger:          s.log,
		})
		s.mux.Handle("/api/analyses", analysesHandler)
		s.mux.Handle("/api/analyses/", analysesHandler)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/ws/progress", s.config.Hub)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// handleHealth reports process liveness and uptime.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.start).Seconds()),
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("server listening", "addr", addr)
	return http.ListenAndServe(addr, s.mux)
}
