package connector

import (
	"math"
	"time"
)

// NextBackoff returns attempt n's reconnect delay:
// min(reconnect_interval * multiplier^n, max_backoff), per spec.md §4.4.
func NextBackoff(cfg Config, attempt int) time.Duration {
	delay := float64(cfg.ReconnectInterval) * math.Pow(cfg.BackoffMultiplier, float64(attempt))
	if max := float64(cfg.MaxBackoff); delay > max {
		delay = max
	}
	return time.Duration(delay)
}
