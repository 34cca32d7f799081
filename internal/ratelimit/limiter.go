// Package ratelimit implements sliding-window rate limiting over Redis
// sorted sets, used to keep one misbehaving client from flooding the
// signaling endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter checks request counts against a sliding window stored in Redis.
type Limiter struct {
	client    *redis.Client
	keyPrefix string
}

func NewLimiter(client *redis.Client, keyPrefix string) *Limiter {
	return &Limiter{client: client, keyPrefix: keyPrefix}
}

// Result is the outcome of one rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	Limit     int
}

// The window is maintained atomically in Redis: expired members are dropped,
// the current count compared against the limit, and the new request recorded,
// all in one script so concurrent checks cannot race.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local current = redis.call('ZCARD', key)

	if current < limit then
		local counter = redis.call('INCR', key .. ':counter')
		redis.call('ZADD', key, now, now .. ':' .. counter)
		local expire_seconds = math.ceil(window_ms / 1000)
		redis.call('EXPIRE', key, expire_seconds)
		redis.call('EXPIRE', key .. ':counter', expire_seconds)
		return {1, limit - current - 1, 0}
	else
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		local reset_at = 0
		if oldest and #oldest >= 2 then
			reset_at = tonumber(oldest[2]) + window_ms
		end
		return {0, 0, reset_at}
	end
`)

// Allow records a request under key and reports whether it fits the limit for
// the window.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := time.Now()
	nowMs := now.UnixMilli()
	windowStartMs := now.Add(-window).UnixMilli()

	values, err := slidingWindow.Run(ctx, l.client,
		[]string{l.keyPrefix + key},
		nowMs, windowStartMs, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("ratelimit: run script: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("ratelimit: unexpected script result %v", values)
	}

	result := &Result{
		Allowed:   values[0] == 1,
		Remaining: int(values[1]),
		Limit:     limit,
	}
	if values[2] > 0 {
		result.ResetAt = time.UnixMilli(values[2])
	}
	return result, nil
}
