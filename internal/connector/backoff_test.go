package connector

import (
	"testing"
	"time"
)

func TestNextBackoffGrowsExponentially(t *testing.T) {
	t.Parallel()
	cfg := Config{
		ReconnectInterval: time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
	}
	for _, c := range cases {
		got := NextBackoff(cfg, c.attempt)
		if got != c.want {
			t.Errorf("NextBackoff(attempt=%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestNextBackoffCapsAtMaxBackoff(t *testing.T) {
	t.Parallel()
	cfg := Config{
		ReconnectInterval: time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
	got := NextBackoff(cfg, 10)
	if got != cfg.MaxBackoff {
		t.Errorf("NextBackoff(attempt=10) = %v, want capped at %v", got, cfg.MaxBackoff)
	}
}
