package middleware

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter implements fixed-window rate limiting in Redis so
// limits are shared across instances
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "folio:ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

// Config returns the limiter configuration
func (rl *DistributedRateLimiter) Config() *RateLimitConfig { return rl.config }

// Allow counts the request in the current window
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	redisKey := fmt.Sprintf("%s:%s", rl.prefix, key)

	// the window starts with the first request; later requests keep its TTL
	pipe := rl.redis.TxPipeline()
	pipe.SetNX(ctx, redisKey, 0, rl.config.WindowDuration)
	incr := pipe.Incr(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("redis error: %w", err)
	}

	limit := int64(rl.config.RequestsPerWindow + rl.config.BurstSize)
	count := incr.Val()
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= limit, int(remaining), nil
}

// Reset clears the rate limit for a key
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, fmt.Sprintf("%s:%s", rl.prefix, key)).Err()
}
