package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/candidly/backend/internal/auth"
	"github.com/candidly/backend/internal/logging"
)

// Authenticate attaches the verified session to the request context when an
// Authorization header is present. Requests without one pass through
// anonymously; a token that fails verification is rejected.
func Authenticate(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || verifier == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token := auth.BearerToken(header)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			session, err := verifier.Verify(ctx, token)
			if err != nil {
				status := http.StatusUnauthorized
				if !errors.Is(err, auth.ErrInvalidToken) {
					status = http.StatusServiceUnavailable
				}
				logging.FromContext(ctx).Warn("token verification failed", slog.Int("status", status), slog.String("error", err.Error()))
				writeError(w, status, "unable to verify session")
				return
			}

			logger := logging.FromContext(ctx).With(slog.String("user_id", session.UserID))
			ctx = logging.WithLogger(auth.WithSession(ctx, session), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession rejects requests that reach it without a session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.CurrentSession(r.Context()); err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
