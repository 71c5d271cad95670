// Package apiclient talks to a deployed Candidly backend on behalf of a signed-in user.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/candidly/backend/internal/videoupload"
)

// StatusError reports a non-2xx answer from the backend.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

// Client calls the backend API with the user's access token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL. A nil httpClient uses http.DefaultClient.
func New(baseURL, accessToken string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api base url is required")
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, errors.New("access token is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, token: accessToken, http: httpClient}, nil
}

// RequestSlot calls POST /video/presigned-url.
func (c *Client) RequestSlot(ctx context.Context, fileName, contentType string) (videoupload.Slot, error) {
	var slot videoupload.Slot
	body := map[string]string{"fileName": fileName, "contentType": contentType}
	if err := c.do(ctx, "request upload slot", http.MethodPost, "/video/presigned-url", body, &slot); err != nil {
		return videoupload.Slot{}, err
	}
	if slot.URL == "" {
		return videoupload.Slot{}, errors.New("request upload slot: empty url")
	}
	return slot, nil
}

// SignedReadURL calls GET /video/signed-url.
func (c *Client) SignedReadURL(ctx context.Context, key string) (string, error) {
	var resp struct {
		SignedURL string `json:"signedUrl"`
	}
	if err := c.do(ctx, "resolve playback url", http.MethodGet, "/video/signed-url?key="+url.QueryEscape(key), nil, &resp); err != nil {
		return "", err
	}
	return resp.SignedURL, nil
}

// SetVideoReference calls PUT /api/v1/profile/video. The backend takes the user
// from the token, so userID is only used by other ReferenceWriter implementations.
func (c *Client) SetVideoReference(ctx context.Context, _ string, reference string) error {
	body := map[string]string{"videoUrl": reference}
	return c.do(ctx, "save video reference", http.MethodPut, "/api/v1/profile/video", body, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

var (
	_ videoupload.SlotIssuer      = (*Client)(nil)
	_ videoupload.ReadURLResolver = (*Client)(nil)
	_ videoupload.ReferenceWriter = (*Client)(nil)
)
