package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// SlidingWindow is the primary algorithm named in spec.md §4.2: per key, the
// set of hit timestamps within [now-window, now] is maintained in a Redis
// sorted set; eviction of stale entries and admission are one atomic script.
type SlidingWindow struct {
	client           redis.Cmdable
	window           time.Duration
	requestsPerWindow int64
}

// NewSlidingWindow builds a sliding-window limiter admitting at most
// requestsPerWindow hits in any trailing window-duration interval.
func NewSlidingWindow(client redis.Cmdable, window time.Duration, requestsPerWindow int64) *SlidingWindow {
	return &SlidingWindow{client: client, window: window, requestsPerWindow: requestsPerWindow}
}

// slidingWindowScript evicts timestamps older than now-window, counts what
// remains, and admits (appending now) iff the count is within budget.
// Mirrors the score-as-timestamp sorted-set pattern and is wrapped in one
// EVAL for the same race-free guarantee as the token bucket script it's
// grounded on.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_ms = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now_ms - window_ms)

local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
    redis.call('ZADD', key, now_ms, member)
    allowed = 1
    count = count + 1
end
redis.call('PEXPIRE', key, window_ms * 2)

return {allowed, limit - count}
`)

// Check implements Algorithm.
func (s *SlidingWindow) Check(ctx context.Context, key string, now time.Time) (Decision, error) {
	nowMs := now.UnixMilli()
	windowMs := s.window.Milliseconds()
	member := key + ":" + strconv.FormatInt(now.UnixNano(), 10)

	res, err := slidingWindowScript.Run(ctx, s.client, []string{"ratelimit:sw:" + key},
		windowMs, s.requestsPerWindow, nowMs, member).Int64Slice()
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
		Limit:     s.requestsPerWindow,
	}, nil
}
