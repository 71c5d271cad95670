package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// RemoteVerifier asks the Supabase auth server who owns a token. It is used when the
// project JWT secret is not available to this service.
type RemoteVerifier struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRemoteVerifier constructs a verifier calling {baseURL}/auth/v1/user.
func NewRemoteVerifier(baseURL, apiKey string, client *http.Client) *RemoteVerifier {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteVerifier{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		Client:  client,
	}
}

// Verify resolves the user for the token. Any non-200 answer is treated as an invalid token.
func (v *RemoteVerifier) Verify(ctx context.Context, accessToken string) (Session, error) {
	if accessToken == "" {
		return Session{}, ErrNoSession
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return Session{}, fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if v.APIKey != "" {
		req.Header.Set("apikey", v.APIKey)
	}

	resp, err := v.Client.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("fetch user: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Session{}, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		return Session{}, fmt.Errorf("fetch user: unexpected status %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return Session{}, fmt.Errorf("decode user: %w", err)
	}
	if user.ID == "" {
		return Session{}, ErrInvalidToken
	}

	return Session{
		UserID:       user.ID,
		Email:        user.Email,
		AccessToken:  accessToken,
		AppMetadata:  user.AppMetadata,
		UserMetadata: user.UserMetadata,
	}, nil
}
