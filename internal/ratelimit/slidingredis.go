package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the window, admits the request only when under max and
// reports the time the oldest admitted request leaves the window. Scores are
// microseconds so they stay exact as Lua numbers. Rejected requests are not
// recorded, so a burst of refused edits does not extend the lockout.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < max then
  redis.call('ZADD', key, now, ARGV[4])
  count = count + 1
  allowed = 1
end
redis.call('PEXPIRE', key, math.ceil(window / 1000))
local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// Decision is the outcome of one limiter check.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter is a sliding window rate limiter backed by a Redis sorted set per key.
type Limiter struct {
	Client redis.Scripter
	Prefix string
}

// Allow records one event for key when the window has room. A zero client,
// window or max disables limiting.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error) {
	now := time.Now()
	if l.Client == nil || max <= 0 || window <= 0 {
		return Decision{Allowed: true, Remaining: max, ResetAt: now.Add(window)}, nil
	}

	res, err := slidingWindow.Run(ctx, l.Client, []string{l.Prefix + key},
		now.UnixMicro(), window.Microseconds(), max, uuid.NewString()).Int64Slice()
	if err != nil {
		return Decision{ResetAt: now.Add(window)}, err
	}
	if len(res) != 3 {
		return Decision{ResetAt: now.Add(window)}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}
	remaining := max - int(res[1])
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   res[0] == 1,
		Remaining: remaining,
		ResetAt:   time.UnixMicro(res[2]),
	}, nil
}
