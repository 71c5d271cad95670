package handlers

import (
	"context"
	"net/http"
	"net/netip"
	"strings"

	"github.com/candidly/backend/internal/auth"
)

// RateLimiter is the minimal interface required to guard the signing endpoints.
type RateLimiter interface {
	Allow(ctx context.Context, key string) bool
}

// allowRequest answers 429 and returns false when the caller is over budget.
func allowRequest(limiter RateLimiter, w http.ResponseWriter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	if limiter.Allow(r.Context(), rateLimitKey(r, scope)) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	respondError(r.Context(), w, http.StatusTooManyRequests, "too many requests")
	return false
}

// rateLimitKey buckets signed-in callers by user id so shared office IPs do not
// starve each other; anonymous callers fall back to the client address.
func rateLimitKey(r *http.Request, scope string) string {
	subject := "ip:" + clientIP(r)
	if session, err := auth.CurrentSession(r.Context()); err == nil {
		subject = "user:" + session.UserID
	}
	if scope == "" {
		return subject
	}
	return scope + ":" + subject
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		if addr, err := netip.ParseAddr(realIP); err == nil {
			return addr.String()
		}
	}
	if addrPort, err := netip.ParseAddrPort(strings.TrimSpace(r.RemoteAddr)); err == nil {
		return addrPort.Addr().String()
	}
	return strings.TrimSpace(r.RemoteAddr)
}
