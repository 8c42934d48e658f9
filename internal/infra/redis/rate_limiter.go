package redis

import (
	"context"
	"time"
)

// RateLimiter is a fixed-window counter shared by every process using the same redis.
type RateLimiter struct {
	kv KV
}

func NewRateLimiter(kv KV) *RateLimiter {
	return &RateLimiter{kv: kv}
}

func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := r.kv.Incr(ctx, key)
	if err != nil {
		return false, err
	}

	if count == 1 {
		err = r.kv.Expire(ctx, key, window)
		if err != nil {
			return false, err
		}
	}

	if count > int64(limit) {
		return false, nil
	}

	return true, nil
}
