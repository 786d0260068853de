package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter allows at most limit hits per key per window. With Redis the window is a fixed
// INCR/EXPIRE bucket shared across instances; without it each process keeps token buckets.
type Limiter struct {
	rdb    *redis.Client
	limit  int
	window time.Duration

	mu    sync.Mutex
	local map[string]*rate.Limiter
}

func New(rdb *redis.Client, limit int, window time.Duration) *Limiter {
	return &Limiter{
		rdb:    rdb,
		limit:  limit,
		window: window,
		local:  make(map[string]*rate.Limiter),
	}
}

func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	if l.rdb == nil {
		return l.localLimiter(key).Allow(), nil
	}

	redisKey := fmt.Sprintf("rate_limit:%s", key)
	count, err := l.rdb.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(l.limit), nil
}

// Window is used for the Retry-After header.
func (l *Limiter) Window() time.Duration {
	return l.window
}

func (l *Limiter) localLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.local[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)
		l.local[key] = lim
	}
	return lim
}

// Reset drops the in-process buckets.
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.local = make(map[string]*rate.Limiter)
	l.mu.Unlock()
}
