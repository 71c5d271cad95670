package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/candidly/backend/internal/config"
)

// UploadTarget is a time-limited write slot for a single object.
type UploadTarget struct {
	Key       string    `json:"key"`
	SignedURL string    `json:"signedUrl"`
	Method    string    `json:"method"`
	PublicURL string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Backend is the storage capability used by the upload endpoints and the video client.
// Exactly one implementation is active per deployment.
type Backend interface {
	// IssueUpload returns a signed URL the browser can write key to directly.
	IssueUpload(ctx context.Context, key, contentType string) (UploadTarget, error)
	// IssueRead returns a signed URL for reading key.
	IssueRead(ctx context.Context, key string) (string, error)
	// Save writes the object server-side and returns its public location.
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	// Exists reports whether an object has been written at key.
	Exists(ctx context.Context, key string) (bool, error)
	// PublicURL returns the stable, unsigned location of key.
	PublicURL(key string) string
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.ObjectStoreConfig, supabase config.SupabaseConfig, client *http.Client) (Backend, error) {
	switch cfg.Backend {
	case config.BackendS3, "":
		return NewS3Backend(ctx, cfg)
	case config.BackendSupabase:
		return NewSupabaseBackend(supabase, cfg, client)
	case config.BackendMinIO:
		return NewMinIOBackend(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

const maxFileNameLength = 200

// ValidFileName reports whether name is a plain object name safe to place under a prefix.
func ValidFileName(name string) bool {
	if name == "" || !utf8.ValidString(name) || len(name) > maxFileNameLength {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return strings.TrimSpace(name) == name
}

// ObjectKey joins a prefix and a validated file name.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func escapeKey(key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func checkKey(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	return key, nil
}
