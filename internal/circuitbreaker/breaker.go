// Package circuitbreaker implements a per-downstream failure-window fuse
// with Closed/Open/HalfOpen states: a single mutex guards a small piece of
// state recomputed lazily against the wall clock on every call.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is one of Closed, Open, HalfOpen.
type State string

const (
	Closed   State = "CLOSED"
	Open     State = "OPEN"
	HalfOpen State = "HALF_OPEN"
)

// Config tunes one breaker instance.
type Config struct {
	FailureThreshold int           // consecutive failures to trip Open
	RecoveryTimeout  time.Duration // time in Open before a HalfOpen probe is allowed
	HalfOpenMaxCalls int           // successes required in HalfOpen to close
}

// DefaultConfig matches the values used across internal/proxy's downstream
// breakers unless a service overrides them.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

// Stats is an immutable snapshot of breaker state for dashboards/logging.
type Stats struct {
	State            State
	FailureCount     int
	SuccessCount     int
	HalfOpenCalls    int
	LastFailureAt    time.Time
}

// Breaker is safe for concurrent use by multiple goroutines.
type Breaker struct {
	cfg Config

	mu            sync.Mutex
	state         State
	failureCount  int
	successCount  int
	halfOpenCalls int
	lastFailureAt time.Time
}

// New creates a Breaker in the Closed state.
func New(cfg Config) *Breaker {
	return &Breaker{cfg: cfg, state: Closed}
}

// Allow reports whether a call to the downstream may proceed at time now.
// In Open state it transitions to HalfOpen once the recovery timeout has
// elapsed and admits the probing call.
func (b *Breaker) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return true
	case Open:
		if now.Sub(b.lastFailureAt) >= b.cfg.RecoveryTimeout {
			b.state = HalfOpen
			b.halfOpenCalls = 1 // this call is the first probe
			b.successCount = 0
			return true
		}
		return false
	case HalfOpen:
		if b.halfOpenCalls < b.cfg.HalfOpenMaxCalls {
			b.halfOpenCalls++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess reports a successful downstream call. In Closed, it resets
// the failure streak. In HalfOpen, once successCount reaches
// HalfOpenMaxCalls the breaker closes and all counters zero.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.failureCount = 0
	case HalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.HalfOpenMaxCalls {
			b.state = Closed
			b.failureCount = 0
			b.successCount = 0
			b.halfOpenCalls = 0
		}
	}
}

// RecordFailure reports a failed downstream call at time now. In Closed, a
// failure streak reaching FailureThreshold trips the breaker Open. In
// HalfOpen, a single failure trips back to Open immediately.
func (b *Breaker) RecordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = now

	switch b.state {
	case Closed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = Open
		}
	case HalfOpen:
		b.state = Open
		b.halfOpenCalls = 0
		b.successCount = 0
	}
}

// Stats returns a snapshot of the current state and counters.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		State:         b.state,
		FailureCount:  b.failureCount,
		SuccessCount:  b.successCount,
		HalfOpenCalls: b.halfOpenCalls,
		LastFailureAt: b.lastFailureAt,
	}
}
