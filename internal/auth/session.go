package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNoSession indicates the request carries no authenticated user.
	ErrNoSession = errors.New("no authenticated session")
	// ErrInvalidToken indicates the presented access token could not be verified.
	ErrInvalidToken = errors.New("invalid access token")
)

// Role classifies a user for UI branching and authorization.
type Role string

const (
	RoleRecruiter Role = "recruiter"
	RoleCandidate Role = "candidate"
	RoleUnknown   Role = "unknown"
)

// Session is a verified identity provider session. It is read-only: issuing and
// refreshing tokens is owned by the provider.
type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	ExpiresAt    time.Time
	AppMetadata  map[string]any
	UserMetadata map[string]any
}

// User is the identity provider user behind a session.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// User returns the user record carried by the session.
func (s Session) User() User {
	return User{ID: s.UserID, Email: s.Email, AppMetadata: s.AppMetadata, UserMetadata: s.UserMetadata}
}

// Role resolves the user's role from app_metadata, which only the provider's
// service role can write. Use this for authorization decisions.
func (s Session) Role() Role {
	roles := rolesFrom(s.AppMetadata)
	switch {
	case hasRole(roles, RoleRecruiter):
		return RoleRecruiter
	case hasRole(roles, RoleCandidate):
		return RoleCandidate
	default:
		return RoleUnknown
	}
}

// DisplayRole reproduces the frontend's branching: recruiter when user_metadata
// lists it, candidate otherwise. user_metadata is writable by the user, so this
// value is non-authoritative and must only drive presentation.
func (s Session) DisplayRole() Role {
	if hasRole(rolesFrom(s.UserMetadata), RoleRecruiter) {
		return RoleRecruiter
	}
	return RoleCandidate
}

// IsRecruiter reports whether the verified role is recruiter.
func (s Session) IsRecruiter() bool {
	return s.Role() == RoleRecruiter
}

// Verifier turns a bearer token into a verified session.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (Session, error)
}

type ctxKey struct{}

// WithSession stores the verified session on the context.
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, session)
}

// CurrentSession returns the session attached to ctx or ErrNoSession.
func CurrentSession(ctx context.Context) (Session, error) {
	if ctx == nil {
		return Session{}, ErrNoSession
	}
	session, ok := ctx.Value(ctxKey{}).(Session)
	if !ok || session.UserID == "" {
		return Session{}, ErrNoSession
	}
	return session, nil
}

// CurrentUser returns the user behind the session attached to ctx.
func CurrentUser(ctx context.Context) (User, error) {
	session, err := CurrentSession(ctx)
	if err != nil {
		return User{}, err
	}
	return session.User(), nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func rolesFrom(metadata map[string]any) []string {
	if metadata == nil {
		return nil
	}
	var roles []string
	switch v := metadata["roles"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				roles = append(roles, s)
			}
		}
	case []string:
		roles = append(roles, v...)
	case string:
		roles = append(roles, v)
	}
	if role, ok := metadata["role"].(string); ok {
		roles = append(roles, role)
	}
	return roles
}

func hasRole(roles []string, want Role) bool {
	for _, role := range roles {
		if strings.EqualFold(strings.TrimSpace(role), string(want)) {
			return true
		}
	}
	return false
}
