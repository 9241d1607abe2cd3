package registry

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRegisterAndGet(t *testing.T) {
	t.Parallel()
	r := New(time.Second, discardLogger())

	r.Register("marketdata", "http://localhost:9001", "1.0.0", nil)

	svc, ok := r.Get("marketdata")
	if !ok {
		t.Fatal("expected service to be registered")
	}
	if svc.Status != Unknown {
		t.Errorf("status = %v, want Unknown before first health check", svc.Status)
	}
}

func TestUnregisterRemovesService(t *testing.T) {
	t.Parallel()
	r := New(time.Second, discardLogger())
	r.Register("marketdata", "http://localhost:9001", "1.0.0", nil)
	r.Unregister("marketdata")

	if _, ok := r.Get("marketdata"); ok {
		t.Error("expected service to be removed")
	}
}

func TestGetHealthyOnlyReturnsHealthyServices(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := New(time.Second, discardLogger())
	r.Register("marketdata", srv.URL, "1.0.0", nil)

	if _, ok := r.GetHealthy("marketdata"); ok {
		t.Fatal("expected GetHealthy to reject a service before any health check ran")
	}

	r.checkAll(context.Background())

	svc, ok := r.GetHealthy("marketdata")
	if !ok {
		t.Fatal("expected service to be healthy after checkAll")
	}
	if svc.LastHealthCheckAt.IsZero() {
		t.Error("expected LastHealthCheckAt to be stamped")
	}
}

func TestCheckAllMarksUnreachableServiceUnhealthy(t *testing.T) {
	t.Parallel()
	r := New(100*time.Millisecond, discardLogger())
	r.Register("deadservice", "http://127.0.0.1:1", "1.0.0", nil)

	r.checkAll(context.Background())

	svc, ok := r.Get("deadservice")
	if !ok {
		t.Fatal("expected service entry to still exist")
	}
	if svc.Status != Unhealthy {
		t.Errorf("status = %v, want Unhealthy", svc.Status)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
