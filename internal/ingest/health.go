package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthResponse is the liveness payload, grounded on market-data's
// health.rs HealthResponse (status/timestamp/uptime).
type HealthResponse struct {
	Status        string `json:"status"`
	TimestampUnix int64  `json:"timestamp"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ReadyResponse is the readiness payload: every configured connector has
// completed its first successful subscribe.
type ReadyResponse struct {
	Ready bool          `json:"ready"`
	Stats StatsResponse `json:"stats"`
}

// StatsResponse mirrors Manager.Stats for the detail payload, matching
// health.rs's HealthMetrics counters.
type StatsResponse struct {
	TotalProcessed int64 `json:"total_events_processed"`
	TotalDropped   int64 `json:"total_events_dropped"`
	ContinuityChecks int64 `json:"continuity_total_checks"`
	ContinuityGaps   int64 `json:"continuity_gaps_detected"`
}

// HealthServer exposes GET /health (liveness) and GET /ready (readiness)
// for the market-data binary, per SPEC_FULL.md's supplemented feature #1.
type HealthServer struct {
	mgr       *Manager
	startedAt time.Time
	logger    *slog.Logger
	server    *http.Server
}

// NewHealthServer builds a HealthServer bound to addr.
func NewHealthServer(addr string, mgr *Manager, logger *slog.Logger) *HealthServer {
	logger = logger.With("component", "ingest-health")
	hs := &HealthServer{mgr: mgr, startedAt: time.Now(), logger: logger}

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
	stats := hs.mgr.Stats()
	resp := ReadyResponse{
		Ready: hs.mgr.Ready(),
		Stats: StatsResponse{
			TotalProcessed:   stats.TotalProcessed,
			TotalDropped:     stats.TotalDropped,
			ContinuityChecks: stats.Continuity.TotalChecks,
			ContinuityGaps:   stats.Continuity.GapsDetected,
		},
	}
	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
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
	hs.logger.Info("ingest health server starting", "addr", hs.server.Addr)
	if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ingest: health server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the health server down.
func (hs *HealthServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return hs.server.Shutdown(ctx)
}
