package ratelimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sweeper periodically removes sliding-window records older than two
// windows, per spec.md §4.2. Token-bucket and fixed-window keys carry their
// own Redis TTL and need no sweep; sliding-window sorted sets are PEXPIRE'd
// on write too, so this pass is a defensive backstop for keys that fell
// idle before their last write could set the TTL.
type Sweeper struct {
	client   redis.Cmdable
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper builds a Sweeper running every interval.
func NewSweeper(client redis.Cmdable, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{client: client, interval: interval, logger: logger}
}

// Run blocks, sweeping until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				s.logger.Warn("rate limiter sweep failed", "error", err)
			}
		}
	}
}

// sweepOnce scans for sliding-window keys and trims stale members. A SCAN
// cursor loop is used instead of KEYS so the sweep never blocks Redis for
// the full keyspace.
func (s *Sweeper) sweepOnce(ctx context.Context) error {
	var cursor uint64
	cutoff := time.Now().Add(-2 * s.interval).UnixMilli()

	for {
		keys, next, err := s.client.Scan(ctx, cursor, "ratelimit:sw:*", 100).Result()
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := s.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
				s.logger.Warn("sweep trim failed", "key", key, "error", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
