package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// supabaseAudience is the audience Supabase stamps on end-user access tokens.
const supabaseAudience = "authenticated"

type supabaseClaims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// JWTVerifier validates Supabase access tokens locally using the project's JWT secret.
type JWTVerifier struct {
	secret  []byte
	NowFunc func() time.Time
}

// NewJWTVerifier constructs a verifier for HS256 tokens signed with secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

// Verify parses and validates the token, returning the session it describes.
func (v *JWTVerifier) Verify(_ context.Context, accessToken string) (Session, error) {
	if accessToken == "" {
		return Session{}, ErrNoSession
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(supabaseAudience),
		jwt.WithExpirationRequired(),
	}
	if v.NowFunc != nil {
		opts = append(opts, jwt.WithTimeFunc(v.NowFunc))
	}

	var claims supabaseClaims
	token, err := jwt.ParseWithClaims(accessToken, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Session{}, ErrInvalidToken
	}

	session := Session{
		UserID:       claims.Subject,
		Email:        claims.Email,
		AccessToken:  accessToken,
		AppMetadata:  claims.AppMetadata,
		UserMetadata: claims.UserMetadata,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return session, nil
}
