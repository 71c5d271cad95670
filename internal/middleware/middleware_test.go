package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/candidly/backend/internal/auth"
	"github.com/candidly/backend/internal/logging"
)

func TestIPRateLimiter(t *testing.T) {
	limiter := newIPRateLimiter(2, time.Minute, 2, time.Minute)
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ctx := context.Background()
	if !limiter.Allow(ctx, "1.2.3.4") || !limiter.Allow(ctx, "1.2.3.4") {
		t.Fatal("expected burst to be allowed")
	}
	if limiter.Allow(ctx, "1.2.3.4") {
		t.Fatal("expected third request to be limited")
	}
	if !limiter.Allow(ctx, "5.6.7.8") {
		t.Fatal("expected other keys to be independent")
	}

	now = now.Add(31 * time.Second)
	if !limiter.Allow(ctx, "1.2.3.4") {
		t.Fatal("expected a token to be replenished")
	}

	now = now.Add(10 * time.Minute)
	limiter.Allow(ctx, "9.9.9.9")
	limiter.mu.Lock()
	_, stale := limiter.visitors["5.6.7.8"]
	limiter.mu.Unlock()
	if stale {
		t.Fatal("expected idle visitors to be collected")
	}
}

type fakeRedis struct {
	counts    map[string]int64
	expires   map[string]time.Duration
	err       error
	expireErr error
}

func (f *fakeRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) TTL(ctx context.Context, key string) *redis.DurationCmd {
	ttl, ok := f.expires[key]
	if !ok {
		ttl = noExpiry
	}
	return redis.NewDurationResult(ttl, nil)
}

func TestRedisRateLimiter(t *testing.T) {
	store := &fakeRedis{counts: map[string]int64{}, expires: map[string]time.Duration{}}
	limiter := NewRedisRateLimiter(store, 2, 1, time.Minute)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if !limiter.Allow(ctx, "upload:1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow(ctx, "upload:1.2.3.4") {
		t.Fatal("expected fourth request to be limited")
	}
	if store.expires["candidly:ratelimit:upload:1.2.3.4"] != time.Minute {
		t.Fatalf("expected window expiry, got %v", store.expires)
	}

	store.err = errors.New("connection refused")
	if !limiter.Allow(ctx, "upload:1.2.3.4") {
		t.Fatal("expected limiter to fail open")
	}
}

func TestRedisRateLimiterRestoresLostExpiry(t *testing.T) {
	store := &fakeRedis{counts: map[string]int64{}, expires: map[string]time.Duration{}}
	limiter := NewRedisRateLimiter(store, 1, 0, time.Minute)
	ctx := context.Background()
	key := "candidly:ratelimit:upload:1.2.3.4"

	store.expireErr = errors.New("connection reset")
	if !limiter.Allow(ctx, "upload:1.2.3.4") {
		t.Fatal("expected first request to be allowed when expiry fails")
	}
	if _, ok := store.expires[key]; ok {
		t.Fatal("expected no expiry to be recorded")
	}

	store.expireErr = nil
	if limiter.Allow(ctx, "upload:1.2.3.4") {
		t.Fatal("expected second request to be limited")
	}
	if store.expires[key] != time.Minute {
		t.Fatalf("expected expiry to be restored, got %v", store.expires)
	}
}

type stubVerifier struct {
	session auth.Session
	err     error
}

func (s stubVerifier) Verify(_ context.Context, token string) (auth.Session, error) {
	if s.err != nil {
		return auth.Session{}, s.err
	}
	session := s.session
	session.AccessToken = token
	return session, nil
}

func sessionEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := auth.CurrentSession(r.Context())
		if err != nil {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(session.UserID + ":" + session.AccessToken))
	})
}

func TestAuthenticate(t *testing.T) {
	verifier := stubVerifier{session: auth.Session{UserID: "user-1"}}
	handler := Authenticate(verifier)(sessionEcho())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Body.String() != "anonymous" {
		t.Fatalf("expected anonymous pass-through got %q", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Body.String() != "user-1:tok" {
		t.Fatalf("expected session on context got %q", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for malformed header got %d", rec.Code)
	}
}

func TestAuthenticateRejectsInvalidToken(t *testing.T) {
	cases := map[error]int{
		auth.ErrInvalidToken:       http.StatusUnauthorized,
		errors.New("auth is down"): http.StatusServiceUnavailable,
	}
	for verifyErr, want := range cases {
		handler := Authenticate(stubVerifier{err: verifyErr})(sessionEcho())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != want {
			t.Fatalf("%v: expected %d got %d", verifyErr, want, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
			t.Fatalf("expected JSON error body got %q", rec.Body.String())
		}
	}
}

func TestRequireSession(t *testing.T) {
	handler := RequireSession(sessionEcho())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithSession(req.Context(), auth.Session{UserID: "user-2"}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "user-2") {
		t.Fatalf("expected pass-through got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if logging.RequestIDFromContext(r.Context()) != "req-42" {
			t.Errorf("expected request id on context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("expected request id echoed got %q", rec.Header().Get(RequestIDHeader))
	}
	if !strings.Contains(buf.String(), `"status":418`) || !strings.Contains(buf.String(), `"request_id":"req-42"`) {
		t.Fatalf("unexpected log output %s", buf.String())
	}
}

func TestCompletionLevel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{path: "/api/upload", status: http.StatusOK, want: slog.LevelInfo},
		{path: "/healthz", status: http.StatusOK, want: slog.LevelDebug},
		{path: "/healthz", status: http.StatusServiceUnavailable, want: slog.LevelError},
		{path: "/api/upload", status: http.StatusTooManyRequests, want: slog.LevelWarn},
	}
	for _, tt := range tests {
		if got := completionLevel(tt.path, tt.status); got != tt.want {
			t.Errorf("%s %d: expected %v got %v", tt.path, tt.status, tt.want, got)
		}
	}
}

func TestRequestLoggerRecoversPanics(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
