package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// fixedWindow counts hits in a window that starts with the first hit.
var fixedWindow = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {current, ttl}
`)

type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter is a fixed-window request counter shared through redis.
type RateLimiter struct {
	rdb       *redis.Client
	keyPrefix string
	limit     int
	window    time.Duration
}

func NewRateLimiter(rdb *redis.Client, keyPrefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, keyPrefix: keyPrefix, limit: limit, window: window}
}

// Allow records one hit for key and reports whether it fits in the window.
func (l *RateLimiter) Allow(ctx context.Context, key string) (*RateLimitResult, error) {
	now := time.Now()

	res, err := fixedWindow.Run(ctx, l.rdb, []string{l.keyPrefix + key}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected rate limit reply length: %d", len(res))
	}

	count, ttl := res[0], res[1]
	resetAt := now.Add(l.window)
	if ttl > 0 {
		resetAt = now.Add(time.Duration(ttl) * time.Millisecond)
	}

	remaining := l.limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitResult{
		Allowed:   int(count) <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}
