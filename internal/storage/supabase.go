package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/candidly/backend/internal/config"
)

// supabaseUploadWindow is fixed by the provider for signed upload URLs.
const supabaseUploadWindow = 2 * time.Hour

// SupabaseBackend delegates signing to the Supabase Storage API.
type SupabaseBackend struct {
	baseURL string
	apiKey  string
	bucket  string
	readTTL time.Duration
	client  *http.Client
	now     func() time.Time
}

// NewSupabaseBackend configures the provider-signed storage path.
func NewSupabaseBackend(project config.SupabaseConfig, cfg config.ObjectStoreConfig, client *http.Client) (*SupabaseBackend, error) {
	if strings.TrimSpace(project.URL) == "" {
		return nil, errors.New("supabase storage: project url is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("supabase storage: bucket is required")
	}
	key := project.ServiceKey
	if key == "" {
		key = project.AnonKey
	}
	if client == nil {
		client = http.DefaultClient
	}
	readTTL := cfg.ReadURLTTL
	if readTTL <= 0 {
		readTTL = 36000 * time.Second
	}

	return &SupabaseBackend{
		baseURL: strings.TrimSuffix(project.URL, "/") + "/storage/v1",
		apiKey:  key,
		bucket:  cfg.Bucket,
		readTTL: readTTL,
		client:  client,
		now:     time.Now,
	}, nil
}

// IssueUpload requests a signed upload URL for key.
func (s *SupabaseBackend) IssueUpload(ctx context.Context, key, contentType string) (UploadTarget, error) {
	key, err := checkKey(key)
	if err != nil {
		return UploadTarget{}, &SigningError{Op: "sign upload", Key: key, Err: err}
	}

	issuedAt := s.now().UTC()
	var resp struct {
		URL string `json:"url"`
	}
	endpoint := fmt.Sprintf("%s/object/upload/sign/%s/%s", s.baseURL, s.bucket, escapeKey(key))
	if err := s.postJSON(ctx, endpoint, map[string]any{}, &resp); err != nil {
		return UploadTarget{}, &SigningError{Op: "sign upload", Key: key, Err: err}
	}
	if resp.URL == "" {
		return UploadTarget{}, &SigningError{Op: "sign upload", Key: key, Err: errors.New("empty signed url")}
	}

	return UploadTarget{
		Key:       key,
		SignedURL: s.absolute(resp.URL),
		Method:    http.MethodPut,
		PublicURL: s.PublicURL(key),
		ExpiresAt: issuedAt.Add(supabaseUploadWindow),
	}, nil
}

// IssueRead requests a signed read URL valid for the configured read window.
func (s *SupabaseBackend) IssueRead(ctx context.Context, key string) (string, error) {
	key, err := checkKey(key)
	if err != nil {
		return "", &SigningError{Op: "sign read", Key: key, Err: err}
	}

	var resp struct {
		SignedURL string `json:"signedURL"`
	}
	endpoint := fmt.Sprintf("%s/object/sign/%s/%s", s.baseURL, s.bucket, escapeKey(key))
	body := map[string]any{"expiresIn": int(s.readTTL / time.Second)}
	if err := s.postJSON(ctx, endpoint, body, &resp); err != nil {
		return "", &SigningError{Op: "sign read", Key: key, Err: err}
	}
	if resp.SignedURL == "" {
		return "", &SigningError{Op: "sign read", Key: key, Err: errors.New("empty signed url")}
	}
	return s.absolute(resp.SignedURL), nil
}

// Save uploads the object through the storage API.
func (s *SupabaseBackend) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	key, err := checkKey(key)
	if err != nil {
		return "", &TransferError{Key: key, Err: err}
	}

	endpoint := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, escapeKey(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, r)
	if err != nil {
		return "", &TransferError{Key: key, Err: err}
	}
	s.authorize(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("x-upsert", "false")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &TransferError{Key: key, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &TransferError{Key: key, StatusCode: resp.StatusCode}
	}
	return s.PublicURL(key), nil
}

// Exists sends an authenticated HEAD for key. The API answers a missing
// object with 400 or 404.
func (s *SupabaseBackend) Exists(ctx context.Context, key string) (bool, error) {
	key, err := checkKey(key)
	if err != nil {
		return false, &LookupError{Key: key, Err: err}
	}

	endpoint := fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, escapeKey(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false, &LookupError{Key: key, Err: err}
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return false, &LookupError{Key: key, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return true, nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusBadRequest:
		return false, nil
	default:
		return false, &LookupError{Key: key, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

// PublicURL returns the public object URL for key.
func (s *SupabaseBackend) PublicURL(key string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, s.bucket, escapeKey(key))
}

func (s *SupabaseBackend) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	s.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (s *SupabaseBackend) authorize(req *http.Request) {
	if s.apiKey == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("apikey", s.apiKey)
}

// absolute turns the API's path-relative answers into full URLs.
func (s *SupabaseBackend) absolute(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return s.baseURL + p
}

var _ Backend = (*SupabaseBackend)(nil)
