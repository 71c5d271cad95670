package handlers

import (
	"net/http"
	"time"

	"github.com/candidly/backend/internal/auth"
)

// SessionHandler exposes the verified session to the browser.
type SessionHandler struct{}

type sessionResponse struct {
	UserID      string     `json:"userId"`
	Email       string     `json:"email"`
	Role        auth.Role  `json:"role"`
	DisplayRole auth.Role  `json:"displayRole"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// Current handles GET /api/v1/session. role comes from provider-controlled
// metadata; displayRole is for UI branching only.
func (SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	session, err := auth.CurrentSession(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	resp := sessionResponse{
		UserID:      session.UserID,
		Email:       session.Email,
		Role:        session.Role(),
		DisplayRole: session.DisplayRole(),
	}
	if !session.ExpiresAt.IsZero() {
		expires := session.ExpiresAt.UTC()
		resp.ExpiresAt = &expires
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}
