package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/candidly/backend/internal/auth"
	"github.com/candidly/backend/internal/config"
	"github.com/candidly/backend/internal/db"
	"github.com/candidly/backend/internal/handlers"
	"github.com/candidly/backend/internal/middleware"
	"github.com/candidly/backend/internal/repositories"
	"github.com/candidly/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
// The returned cleanup releases clients that hold connections of their own.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	backend, err := storage.New(ctx, cfg.ObjectStore, cfg.Supabase, outboundClient(cfg))
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	limiter, cleanup := buildLimiter(cfg.RateLimit)

	deps := handlers.Dependencies{
		Storage:       backend,
		Profiles:      repositories.NewPostgresProfileRepository(pool),
		Resumes:       repositories.NewPostgresResumeRepository(pool),
		UploadLimiter: limiter,
		UploadPrefix:  cfg.ObjectStore.VideoPrefix,
		VideoPrefix:   cfg.ObjectStore.VideoPrefix,
		ResumePrefix:  cfg.ObjectStore.ResumePrefix,
		MaxVideoBytes: cfg.MaxVideoBytes,
	}
	if pinger, ok := pool.(handlers.Pinger); ok {
		deps.Health = pinger
	}

	return deps, cleanup, nil
}

// buildLimiter shares the budget through redis when an address is configured and
// falls back to a per-process limiter otherwise.
func buildLimiter(cfg config.RateLimitConfig) (handlers.RateLimiter, func(context.Context) error) {
	if cfg.RedisAddr == "" {
		limiter := middleware.NewIPRateLimiter(cfg.Requests, cfg.Window, cfg.Burst, 10*cfg.Window)
		return limiter, func(context.Context) error { return nil }
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	limiter := middleware.NewRedisRateLimiter(client, cfg.Requests, cfg.Burst, cfg.Window)
	return limiter, func(context.Context) error { return client.Close() }
}

// buildVerifier prefers local HS256 verification and otherwise asks the
// identity provider, caching successful answers.
func buildVerifier(cfg config.Config, client *http.Client) (auth.Verifier, error) {
	if cfg.Supabase.JWTSecret != "" {
		return auth.NewJWTVerifier(cfg.Supabase.JWTSecret)
	}
	if cfg.Supabase.URL == "" {
		return nil, errors.New("SUPABASE_JWT_SECRET or SUPABASE_URL is required")
	}
	remote := auth.NewRemoteVerifier(cfg.Supabase.URL, cfg.Supabase.AnonKey, client)
	return auth.NewCachingVerifier(remote, cfg.Supabase.SessionCacheTTL), nil
}

func outboundClient(cfg config.Config) *http.Client {
	timeout := cfg.HTTPClientTimeout
	if timeout < 0 {
		timeout = 0
	}
	return &http.Client{Timeout: timeout}
}
