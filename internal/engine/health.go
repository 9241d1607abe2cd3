package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthResponse is the liveness payload, matching the shape ingest's
// health server returns for the market-data binary.
type HealthResponse struct {
	Status        string `json:"status"`
	TimestampUnix int64  `json:"timestamp"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ReadyResponse reports readiness and the open-position count. Ready is
// always true: the position book is restored in New before the server
// exists, and whether Start has been called is not checked.
type ReadyResponse struct {
	Ready         bool `json:"ready"`
	OpenPositions int  `json:"open_positions"`
}

// HealthServer exposes GET /health (liveness) and GET /ready (readiness)
// for the trading-engine binary, mirroring internal/ingest.HealthServer.
type HealthServer struct {
	engine    *Engine
	startedAt time.Time
	server    *http.Server
	logger    *slog.Logger
}

// NewHealthServer builds a HealthServer bound to addr, reporting on e.
func NewHealthServer(addr string, e *Engine, logger *slog.Logger) *HealthServer {
	logger = logger.With("component", "engine-health")
	hs := &HealthServer{engine: e, startedAt: time.Now(), logger: logger}

	r := chi.NewRouter()
	r.Get("/health", hs.handleHealth)
	r.Get("/ready", hs.handleReady)

	hs.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return hs
}

func (hs *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		TimestampUnix: time.Now().UnixMilli(),
		UptimeSeconds: int64(time.Since(hs.startedAt).Seconds()),
	})
}

func (hs *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	positions := hs.engine.snapshotPositions()
	writeJSON(w, http.StatusOK, ReadyResponse{Ready: true, OpenPositions: len(positions)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(w, `{"status":"error"}`)
	}
}

// Start runs the health server until it errors or Stop is called.
func (hs *HealthServer) Start() error {
	hs.logger.Info("trading-engine health server starting", "addr", hs.server.Addr)
	if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("engine: health server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the health server down.
func (hs *HealthServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.server.Shutdown(ctx)
}
