// Package ratelimit implements the gateway's request admission control.
// All three algorithms share one Redis-backed contract and the same
// atomic-Lua-script pattern as rishavpaul's token bucket limiter: a single
// round trip reads, mutates and writes bucket state so concurrent callers
// racing on the same key never double-admit.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int64
	Limit      int64
	RetryAfter time.Duration
}

// Algorithm is the shared contract every admission strategy implements.
type Algorithm interface {
	// Check reports whether the request for key is admitted at time now.
	// On backing-store failure, implementations return the error; Limiter.Allow
	// then admits the request (fail open) and logs a warning. No error metric
	// is recorded.
	Check(ctx context.Context, key string, now time.Time) (Decision, error)
}

// Limiter wraps an Algorithm with a whitelist bypass, matching spec.md
// §4.2's "whitelisted IPs bypass the check".
type Limiter struct {
	algo      Algorithm
	whitelist map[string]struct{}
	logger    *slog.Logger
}

// New builds a Limiter around algo. whitelisted keys (typically client IPs
// or API keys) always admit without consulting algo.
func New(algo Algorithm, whitelisted []string, logger *slog.Logger) *Limiter {
	wl := make(map[string]struct{}, len(whitelisted))
	for _, k := range whitelisted {
		wl[k] = struct{}{}
	}
	return &Limiter{algo: algo, whitelist: wl, logger: logger}
}

// Allow reports whether key may proceed at time now.
func (l *Limiter) Allow(ctx context.Context, key string, now time.Time) Decision {
	if _, ok := l.whitelist[key]; ok {
		return Decision{Allowed: true}
	}

	decision, err := l.algo.Check(ctx, key, now)
	if err != nil {
		l.logger.Warn("rate limiter backing store failed, failing open", "key", key, "error", err)
		return Decision{Allowed: true}
	}
	return decision
}

// redisUnixSeconds converts a time.Time to the fractional-second float the
// Lua scripts expect, matching rishavpaul's token bucket's now encoding.
func redisUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
