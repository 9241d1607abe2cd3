package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBucket is a Redis-backed token bucket, adapted from rishavpaul's
// gateway rate limiter: tokens refill continuously at requests-per-minute/60
// and are capped at burstSize; state (tokens, last_refill_ts) is recomputed
// lazily inside the Lua script on every check.
type TokenBucket struct {
	client            redis.Cmdable
	burstSize         int64
	refillPerSecond   float64
}

// NewTokenBucket builds a token bucket admitting bursts up to burstSize and
// refilling at requestsPerMinute/60 tokens per second.
func NewTokenBucket(client redis.Cmdable, burstSize int64, requestsPerMinute float64) *TokenBucket {
	return &TokenBucket{client: client, burstSize: burstSize, refillPerSecond: requestsPerMinute / 60}
}

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local burst_size = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local tokens = tonumber(redis.call('HGET', key, 'tokens'))
local last_refill = tonumber(redis.call('HGET', key, 'last_refill'))

if tokens == nil then
    tokens = burst_size
    last_refill = now
end

local elapsed = now - last_refill
tokens = math.min(burst_size, tokens + elapsed * refill_rate)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

local retry_after = 0
if allowed == 0 and refill_rate > 0 then
    retry_after = math.ceil((1 - tokens) / refill_rate)
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('EXPIRE', key, 3600)

return {allowed, math.floor(tokens), retry_after}
`)

// Check implements Algorithm.
func (tb *TokenBucket) Check(ctx context.Context, key string, now time.Time) (Decision, error) {
	res, err := tokenBucketScript.Run(ctx, tb.client, []string{"ratelimit:tb:" + key},
		tb.burstSize, tb.refillPerSecond, redisUnixSeconds(now)).Int64Slice()
	if err != nil {
		return Decision{}, err
	}

	return Decision{
		Allowed:    res[0] == 1,
		Remaining:  res[1],
		Limit:      tb.burstSize,
		RetryAfter: time.Duration(res[2]) * time.Second,
	}, nil
}
