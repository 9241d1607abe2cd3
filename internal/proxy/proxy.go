// Package proxy is the gateway's reverse proxy: auth, service resolution,
// circuit breaking, header rewriting and forwarding, following the
// (method, path, headers, body) request pipeline of spec.md §4.3.
package proxy

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"sync"
	"time"

	"tradecore/internal/circuitbreaker"
	"tradecore/internal/gatewayauth"
	"tradecore/internal/ratelimit"
	"tradecore/internal/registry"
)

// Config tunes the proxy.
type Config struct {
	APIPrefix      string
	PublicPaths    PublicPaths
	UpstreamTimeout time.Duration
	BreakerConfig  circuitbreaker.Config
}

// Proxy forwards inbound requests to the downstream named by the path,
// gating them with auth, rate limiting, and a per-service circuit breaker.
type Proxy struct {
	cfg       Config
	registry  *registry.Registry
	limiter   *ratelimit.Limiter
	validator *gatewayauth.Validator
	logger    *slog.Logger

	breakersMu sync.Mutex
	breakers   map[string]*circuitbreaker.Breaker
}

// New builds a Proxy.
func New(cfg Config, reg *registry.Registry, limiter *ratelimit.Limiter, validator *gatewayauth.Validator, logger *slog.Logger) *Proxy {
	return &Proxy{
		cfg:       cfg,
		registry:  reg,
		limiter:   limiter,
		validator: validator,
		logger:    logger.With("component", "proxy"),
		breakers:  make(map[string]*circuitbreaker.Breaker),
	}
}

func (p *Proxy) breakerFor(service string) *circuitbreaker.Breaker {
	p.breakersMu.Lock()
	defer p.breakersMu.Unlock()
	b, ok := p.breakers[service]
	if !ok {
		b = circuitbreaker.New(p.cfg.BreakerConfig)
		p.breakers[service] = b
	}
	return b
}

// ServeHTTP implements the full request pipeline from spec.md §4.3.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := newRequestID()
	var uc gatewayauth.UserContext

	if !p.cfg.PublicPaths.IsPublic(r.URL.Path) {
		token, err := gatewayauth.ExtractBearer(r)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		uc, err = p.validator.Validate(token)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	decision := p.limiter.Allow(r.Context(), clientKey(r), time.Now())
	if !decision.Allowed {
		if decision.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
		}
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	service := targetService(r.URL.Path, p.cfg.APIPrefix)
	if service == "" {
		http.Error(w, "no target service in path", http.StatusBadRequest)
		return
	}

	svc, ok := p.registry.GetHealthy(service)
	if !ok {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	breaker := p.breakerFor(service)
	if !breaker.Allow(time.Now()) {
		p.logger.Warn("circuit open, rejecting", "service", service)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	if isWebSocketUpgrade(r) {
		p.proxyWebSocket(w, r, svc, uc, requestID, service, breaker)
		return
	}
	p.proxyHTTP(w, r, svc, uc, requestID, service, breaker)
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isWebSocketUpgrade(r *http.Request) bool {
	return r.Header.Get("Upgrade") == "websocket"
}

func (p *Proxy) proxyHTTP(w http.ResponseWriter, r *http.Request, svc registry.ServiceInfo, uc gatewayauth.UserContext, requestID, service string, breaker *circuitbreaker.Breaker) {
	target, err := url.Parse(svc.URL)
	if err != nil {
		http.Error(w, "invalid upstream", http.StatusBadGateway)
		return
	}

	rp := httputil.NewSingleHostReverseProxy(target)
	rp.Director = func(req *http.Request) {
		req.URL.Scheme = target.Scheme
		req.URL.Host = target.Host
		req.Host = target.Host
		stripHopByHop(req.Header)
		injectUpstreamHeaders(req.Header, uc, requestID, service, time.Now().UTC().Format(time.RFC3339))
	}

	ctx, cancel := context.WithTimeout(r.Context(), p.cfg.UpstreamTimeout)
	defer cancel()

	status := 0
	rp.ModifyResponse = func(resp *http.Response) error {
		status = resp.StatusCode
		stripHopByHop(resp.Header)
		return nil
	}
	rp.ErrorHandler = func(rw http.ResponseWriter, req *http.Request, err error) {
		breaker.RecordFailure(time.Now())
		if errors.Is(err, context.DeadlineExceeded) {
			http.Error(rw, "upstream timeout", http.StatusGatewayTimeout)
			return
		}
		http.Error(rw, "bad gateway", http.StatusBadGateway)
	}

	rp.ServeHTTP(w, r.WithContext(ctx))

	if status >= 500 {
		breaker.RecordFailure(time.Now())
	} else if status != 0 {
		breaker.RecordSuccess()
	}
}
