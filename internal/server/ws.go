package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ayusman/stockvision/internal/analysis"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// ProgressHub broadcasts per-frame analysis progress to WebSocket clients
// so the dashboard can show a live counter while a video is processed.
type ProgressHub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	log     *slog.Logger
}

// NewProgressHub creates an empty hub.
func NewProgressHub(logger *slog.Logger) *ProgressHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressHub{
		clients: make(map[*websocket.Conn]bool),
		log:     logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Broadcast sends a progress event to all connected clients. Clients that
// fail to write are dropped.
func (h *ProgressHub) Broadcast(p analysis.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteJSON(p); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}
