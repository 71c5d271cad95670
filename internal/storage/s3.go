package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/candidly/backend/internal/config"
)

// S3Backend issues presigned URLs and writes objects on an S3-compatible service.
type S3Backend struct {
	client    *s3.Client
	presigner *s3.PresignClient
	uploader  *manager.Uploader
	bucket    string
	region    string
	endpoint  string
	baseURL   string
	uploadTTL time.Duration
	readTTL   time.Duration
	now       func() time.Time
}

// NewS3Backend configures a client targeting the provided object store.
func NewS3Backend(ctx context.Context, cfg config.ObjectStoreConfig) (*S3Backend, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 storage: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if strings.TrimSpace(cfg.Endpoint) != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Backend(client, cfg), nil
}

func newS3Backend(client *s3.Client, cfg config.ObjectStoreConfig) *S3Backend {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
		u.LeavePartsOnError = false
	})

	uploadTTL := cfg.UploadURLTTL
	if uploadTTL <= 0 {
		uploadTTL = time.Hour
	}
	readTTL := cfg.ReadURLTTL
	if readTTL <= 0 {
		readTTL = 10 * time.Hour
	}

	return &S3Backend{
		client:    client,
		presigner: s3.NewPresignClient(client),
		uploader:  uploader,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		endpoint:  strings.TrimSuffix(cfg.Endpoint, "/"),
		baseURL:   strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		uploadTTL: uploadTTL,
		readTTL:   readTTL,
		now:       time.Now,
	}
}

// IssueUpload presigns a PUT for key bound to contentType.
func (s *S3Backend) IssueUpload(ctx context.Context, key, contentType string) (UploadTarget, error) {
	key, err := checkKey(key)
	if err != nil {
		return UploadTarget{}, &SigningError{Op: "presign put", Key: key, Err: err}
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	issuedAt := s.now().UTC()
	req, err := s.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(s.uploadTTL))
	if err != nil {
		return UploadTarget{}, &SigningError{Op: "presign put", Key: key, Err: err}
	}

	return UploadTarget{
		Key:       key,
		SignedURL: req.URL,
		Method:    http.MethodPut,
		PublicURL: s.PublicURL(key),
		ExpiresAt: issuedAt.Add(s.uploadTTL),
	}, nil
}

// IssueRead presigns a GET for key.
func (s *S3Backend) IssueRead(ctx context.Context, key string) (string, error) {
	key, err := checkKey(key)
	if err != nil {
		return "", &SigningError{Op: "presign get", Key: key, Err: err}
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.readTTL))
	if err != nil {
		return "", &SigningError{Op: "presign get", Key: key, Err: err}
	}
	return req.URL, nil
}

// Save uploads the provided content to the configured bucket and returns a public location.
func (s *S3Backend) Save(ctx context.Context, key, contentType string, r io.Reader) (string, error) {
	key, err := checkKey(key)
	if err != nil {
		return "", &TransferError{Key: key, Err: err}
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   manager.ReadSeekCloser(r),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return "", &TransferError{Key: key, Err: err}
	}

	return s.PublicURL(key), nil
}

// Exists issues a HEAD for key.
func (s *S3Backend) Exists(ctx context.Context, key string) (bool, error) {
	key, err := checkKey(key)
	if err != nil {
		return false, &LookupError{Key: key, Err: err}
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var respErr *awshttp.ResponseError
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		return false, nil
	case errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound:
		return false, nil
	}
	return false, &LookupError{Key: key, Err: err}
}

// PublicURL returns the virtual-hosted style location of key unless a public base URL
// or custom endpoint is configured.
func (s *S3Backend) PublicURL(key string) string {
	key = escapeKey(key)
	switch {
	case s.baseURL != "":
		return fmt.Sprintf("%s/%s", s.baseURL, key)
	case s.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	}
}

var _ Backend = (*S3Backend)(nil)
