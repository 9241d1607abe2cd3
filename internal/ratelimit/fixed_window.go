package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindow buckets hits into windows keyed by floor(now/window_size);
// bucket TTL equals window_size, so stale windows expire on their own
// instead of needing a sweep.
type FixedWindow struct {
	client redis.Cmdable
	window time.Duration
	limit  int64
}

// NewFixedWindow builds a fixed-window limiter admitting at most limit hits
// per window-duration bucket.
func NewFixedWindow(client redis.Cmdable, window time.Duration, limit int64) *FixedWindow {
	return &FixedWindow{client: client, window: window, limit: limit}
}

var fixedWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local ttl_ms = tonumber(ARGV[2])

local count = redis.call('INCR', key)
if count == 1 then
    redis.call('PEXPIRE', key, ttl_ms)
end

local allowed = 0
if count <= limit then
    allowed = 1
end

return {allowed, limit - count}
`)

// Check implements Algorithm.
func (f *FixedWindow) Check(ctx context.Context, key string, now time.Time) (Decision, error) {
	windowIndex := now.UnixMilli() / f.window.Milliseconds()
	bucketKey := "ratelimit:fw:" + key + ":" + strconv.FormatInt(windowIndex, 10)

	res, err := fixedWindowScript.Run(ctx, f.client, []string{bucketKey},
		f.limit, f.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, err
	}

	remaining := res[1]
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   res[0] == 1,
		Remaining: remaining,
		Limit:     f.limit,
	}, nil
}
