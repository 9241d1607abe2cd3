package adminapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Server runs the admin API's HTTP + WebSocket endpoints.
type Server struct {
	hub    *Hub
	server *http.Server
	logger *slog.Logger
}

// NewServer builds a Server bound to addr, backed by provider for snapshot
// data. allowedOrigins controls the WebSocket upgrade's CORS check; an
// empty slice falls back to same-host-or-localhost only.
func NewServer(addr string, provider SnapshotProvider, allowedOrigins []string, logger *slog.Logger) *Server {
	logger = logger.With("component", "adminapi-server")
	hub := NewHub(logger)
	h := newHandlers(provider, hub, allowedOrigins, logger)

	r := chi.NewRouter()
	r.Get("/health", h.handleHealth)
	r.Get("/api/snapshot", h.handleSnapshot)
	r.Get("/ws", h.handleWebSocket)

	return &Server{
		hub:    hub,
		logger: logger,
		server: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Broadcast pushes evt to every connected WebSocket client.
func (s *Server) Broadcast(evt Event) {
	s.hub.BroadcastEvent(evt)
}

// Start runs the hub loop and the HTTP server until Stop is called.
func (s *Server) Start() error {
	go s.hub.Run()
	s.logger.Info("admin API starting", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("adminapi: server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
