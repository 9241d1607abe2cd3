// Package registry is the gateway's service directory: downstream services
// register themselves by name, and a background loop polls each one's
// /health endpoint with resty — timeout, retry on 5xx, structured logging.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Status is a service's last observed health.
type Status string

const (
	Healthy   Status = "HEALTHY"
	Unhealthy Status = "UNHEALTHY"
	Unknown   Status = "UNKNOWN"
)

// ServiceInfo is one registered downstream (spec.md §3 "Service Entry").
type ServiceInfo struct {
	Name              string
	URL               string
	Status            Status
	Version           string
	Metadata          map[string]string
	RegisteredAt      time.Time
	LastHealthCheckAt time.Time
}

// Registry is a concurrent name -> ServiceInfo directory.
type Registry struct {
	mu       sync.RWMutex
	services map[string]ServiceInfo

	http   *resty.Client
	logger *slog.Logger
}

// New builds an empty Registry. healthTimeout bounds each health-check
// request.
func New(healthTimeout time.Duration, logger *slog.Logger) *Registry {
	httpClient := resty.New().
		SetTimeout(healthTimeout).
		SetRetryCount(1).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		})

	return &Registry{
		services: make(map[string]ServiceInfo),
		http:     httpClient,
		logger:   logger,
	}
}

// Register adds or replaces a service entry in Unknown status pending its
// first health check.
func (r *Registry) Register(name, url, version string, metadata map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.services[name]
	registeredAt := time.Now().UTC()
	if ok {
		registeredAt = existing.RegisteredAt
	}

	r.services[name] = ServiceInfo{
		Name:         name,
		URL:          url,
		Status:       Unknown,
		Version:      version,
		Metadata:     metadata,
		RegisteredAt: registeredAt,
	}
}

// Unregister removes a service entry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, name)
}

// Get returns a service entry by name.
func (r *Registry) Get(name string) (ServiceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc, ok
}

// GetHealthy returns a service entry by name only if it is currently
// Healthy, used by the proxy to short-circuit routing to a known-down
// downstream before even consulting the circuit breaker.
func (r *Registry) GetHealthy(name string) (ServiceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	if !ok || svc.Status != Healthy {
		return ServiceInfo{}, false
	}
	return svc, true
}

// All returns a snapshot of every registered service.
func (r *Registry) All() []ServiceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ServiceInfo, 0, len(r.services))
	for _, svc := range r.services {
		out = append(out, svc)
	}
	return out
}

// RunHealthChecks blocks, polling every registered service's /health
// endpoint at the given interval until ctx is cancelled.
func (r *Registry) RunHealthChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkAll(ctx)
		}
	}
}

func (r *Registry) checkAll(ctx context.Context) {
	for _, svc := range r.All() {
		status := r.checkOne(ctx, svc)
		r.mu.Lock()
		if current, ok := r.services[svc.Name]; ok {
			current.Status = status
			current.LastHealthCheckAt = time.Now().UTC()
			r.services[svc.Name] = current
		}
		r.mu.Unlock()
	}
}

func (r *Registry) checkOne(ctx context.Context, svc ServiceInfo) Status {
	resp, err := r.http.R().SetContext(ctx).Get(fmt.Sprintf("%s/health", svc.URL))
	if err != nil {
		r.logger.Warn("health check failed", "service", svc.Name, "error", err)
		return Unhealthy
	}
	if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
		return Healthy
	}
	r.logger.Warn("health check non-2xx", "service", svc.Name, "status", resp.StatusCode())
	return Unhealthy
}
