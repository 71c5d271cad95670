package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/candidly/backend/internal/config"
)

// MinIOBackend serves local and self-hosted S3-compatible deployments.
type MinIOBackend struct {
	client    *minio.Client
	bucket    string
	baseURL   string
	uploadTTL time.Duration
	readTTL   time.Duration
	now       func() time.Time
}

// NewMinIOBackend builds a MinIO client from cfg. The endpoint may be given with or
// without a scheme; a scheme overrides UseSSL.
func NewMinIOBackend(cfg config.ObjectStoreConfig) (*MinIOBackend, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("minio storage: bucket is required")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("minio storage: endpoint is required")
	}

	host, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	scheme := "http"
	if secure {
		scheme = "https"
	}
	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s://%s/%s", scheme, host, cfg.Bucket)
	}

	uploadTTL := cfg.UploadURLTTL
	if uploadTTL <= 0 {
		uploadTTL = time.Hour
	}
	readTTL := cfg.ReadURLTTL
	if readTTL <= 0 {
		readTTL = 10 * time.Hour
	}

	return &MinIOBackend{
		client:    client,
		bucket:    cfg.Bucket,
		baseURL:   baseURL,
		uploadTTL: uploadTTL,
		readTTL:   readTTL,
		now:       time.Now,
	}, nil
}

// IssueUpload presigns a PUT for key.
func (m *MinIOBackend) IssueUpload(ctx context.Context, key, _ string) (UploadTarget, error) {
	key, err := checkKey(key)
	if err != nil {
		return UploadTarget{}, &SigningError{Op: "presign put", Key: key, Err: err}
	}

	issuedAt := m.now().UTC()
	u, err := m.client.PresignedPutObject(ctx, m.bucket, key, m.uploadTTL)
	if err != nil {
		return UploadTarget{}, &SigningError{Op: "presign put", Key: key, Err: err}
	}

	return UploadTarget{
		Key:       key,
		SignedURL: u.String(),
		Method:    http.MethodPut,
		PublicURL: m.PublicURL(key),
		ExpiresAt: issuedAt.Add(m.uploadTTL),
	}, nil
}

// IssueRead presigns a GET for key.
func (m *MinIOBackend) IssueRead(ctx context.Context, key string) (string, error) {
	key, err := checkKey(key)
	if err != nil {
		return "", &SigningError{Op: "presign get", Key: key, Err: err}
	}

	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.readTTL, nil)
	if err != nil {
		return "", &SigningError{Op: "presign get", Key: key, Err: err}
	}
	return u.String(), nil
}

// Save streams the object into the bucket.
func (m *MinIOBackend) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	key, err := checkKey(key)
	if err != nil {
		return "", &TransferError{Key: key, Err: err}
	}

	if _, err := m.client.PutObject(ctx, m.bucket, key, r, -1, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", &TransferError{Key: key, Err: err}
	}
	return m.PublicURL(key), nil
}

// Exists stats key in the bucket.
func (m *MinIOBackend) Exists(ctx context.Context, key string) (bool, error) {
	key, err := checkKey(key)
	if err != nil {
		return false, &LookupError{Key: key, Err: err}
	}

	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, &LookupError{Key: key, Err: err}
	}
	return true, nil
}

// PublicURL returns the path-style location of key.
func (m *MinIOBackend) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", m.baseURL, escapeKey(key))
}

func splitEndpoint(endpoint string, useSSL bool) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), useSSL, nil
	}
	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("parse minio endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("invalid minio endpoint %q, host missing", endpoint)
	}
	return parsed.Host, parsed.Scheme == "https", nil
}

var _ Backend = (*MinIOBackend)(nil)
