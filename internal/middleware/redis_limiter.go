package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/candidly/backend/internal/logging"
)

// redisCounter is the subset of the redis client used for fixed-window counting.
type redisCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// noExpiry is what TTL reports for a key that exists without a timeout.
const noExpiry = time.Duration(-1)

// RedisRateLimiter shares a fixed-window budget across every replica.
type RedisRateLimiter struct {
	client   redisCounter
	prefix   string
	requests int64
	window   time.Duration
}

// NewRedisRateLimiter allows requests+burst events per window for each key.
func NewRedisRateLimiter(client redisCounter, requests, burst int, window time.Duration) *RedisRateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if burst < 0 {
		burst = 0
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisRateLimiter{
		client:   client,
		prefix:   "candidly:ratelimit:",
		requests: int64(requests + burst),
		window:   window,
	}
}

// Allow fails open when redis is unavailable.
func (l *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	if key == "" {
		key = "unknown"
	}
	redisKey := l.prefix + key

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		logging.FromContext(ctx).Warn("rate limiter unavailable", slog.String("error", err.Error()))
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			logging.FromContext(ctx).Warn("rate limiter expiry failed", slog.String("key", redisKey), slog.String("error", err.Error()))
			return true
		}
	}
	if count <= l.requests {
		return true
	}
	l.ensureExpiry(ctx, redisKey)
	return false
}

// ensureExpiry restores the window on a counter whose first EXPIRE was lost,
// so a denied key always unlocks eventually.
func (l *RedisRateLimiter) ensureExpiry(ctx context.Context, redisKey string) {
	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl != noExpiry {
		return
	}
	if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
		logging.FromContext(ctx).Warn("rate limiter expiry failed", slog.String("key", redisKey), slog.String("error", err.Error()))
	}
}

var _ RateLimiter = (*RedisRateLimiter)(nil)
