package middleware

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter decides whether the caller identified by key may sign another URL.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

type bucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per key inside this process. Buckets idle
// for longer than ttl are swept at most once per ttl.
type ipRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*bucket
	every     rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewIPRateLimiter allows requests events per window and key, plus burst extra.
// Use NewRedisRateLimiter when several replicas must share one budget.
func NewIPRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration) RateLimiter {
	return newIPRateLimiter(requests, window, burst, ttl)
}

func newIPRateLimiter(requests int, window time.Duration, burst int, ttl time.Duration) *ipRateLimiter {
	requests = max(requests, 1)
	burst = max(burst, 1)
	if window <= 0 {
		window = time.Second
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &ipRateLimiter{
		visitors: make(map[string]*bucket),
		every:    rate.Every(window / time.Duration(requests)),
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (l *ipRateLimiter) Allow(_ context.Context, key string) bool {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.ttl {
		l.sweepLocked(now)
	}

	b, ok := l.visitors[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(l.every, l.burst)}
		l.visitors[key] = b
	}
	b.lastSeen = now
	return b.tokens.AllowN(now, 1)
}

func (l *ipRateLimiter) sweepLocked(now time.Time) {
	l.lastSweep = now
	for key, b := range l.visitors {
		if now.Sub(b.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
}
