package videoupload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/candidly/backend/internal/logging"
)

// ContentType is sent with every transfer. Recordings are webm even though the
// object name ends in .mp4.
const ContentType = "video/webm"

// ErrUploadInProgress is returned when Upload is called while another upload on
// the same client has not finished.
var ErrUploadInProgress = errors.New("video upload already in progress")

// ObjectName returns the storage name for a recording made by userID at t.
func ObjectName(userID string, t time.Time) string {
	return fmt.Sprintf("%s_%d.mp4", userID, t.UnixMilli())
}

// Slot is a signed write URL for one object.
type Slot struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// SlotIssuer hands out signed upload URLs.
type SlotIssuer interface {
	RequestSlot(ctx context.Context, fileName, contentType string) (Slot, error)
}

// DirectWriter stores an object without a signed URL round trip.
type DirectWriter interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// ReadURLResolver returns a playback URL for a stored object.
type ReadURLResolver interface {
	SignedReadURL(ctx context.Context, key string) (string, error)
}

// ReadURLFunc adapts a function to ReadURLResolver.
type ReadURLFunc func(ctx context.Context, key string) (string, error)

// SignedReadURL calls f.
func (f ReadURLFunc) SignedReadURL(ctx context.Context, key string) (string, error) {
	return f(ctx, key)
}

// ReferenceWriter records the uploaded object on the user's profile.
type ReferenceWriter interface {
	SetVideoReference(ctx context.Context, userID, reference string) error
}

// ReferenceFunc adapts a function to ReferenceWriter.
type ReferenceFunc func(ctx context.Context, userID, reference string) error

// SetVideoReference calls f.
func (f ReferenceFunc) SetVideoReference(ctx context.Context, userID, reference string) error {
	return f(ctx, userID, reference)
}

// Result describes a finished upload.
type Result struct {
	Name        string `json:"name"`
	Key         string `json:"key"`
	Location    string `json:"url,omitempty"`
	PlaybackURL string `json:"playbackUrl,omitempty"`
}

// State is the coarse progress signal: Progress is 0 until a transfer
// completes and 100 afterwards.
type State struct {
	Uploading bool `json:"uploading"`
	Progress  int  `json:"progress"`
}

// Client uploads recordings. Direct takes precedence over Slots when both are set.
// A Client tracks one upload at a time.
type Client struct {
	Slots     SlotIssuer
	Direct    DirectWriter
	KeyPrefix string
	HTTP      *http.Client
	Reader    ReadURLResolver
	Profiles  ReferenceWriter
	Now       func() time.Time

	mu        sync.Mutex
	uploading bool
	progress  int
}

// State returns the current progress signal.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Uploading: c.uploading, Progress: c.progress}
}

// Upload stores blob for userID. Errors are returned as-is and nothing is
// retried or cleaned up; the in-progress flag is reset either way.
func (c *Client) Upload(ctx context.Context, userID string, blob io.Reader) (Result, error) {
	if strings.TrimSpace(userID) == "" {
		return Result{}, errors.New("video upload requires a user id")
	}
	if c.Direct == nil && c.Slots == nil {
		return Result{}, errors.New("video upload has no storage path configured")
	}
	if err := c.begin(); err != nil {
		return Result{}, err
	}

	ctx, span := logging.StartSpan(ctx, "videoupload.upload")
	defer span.End()
	logger := logging.FromContext(ctx)

	result, err := c.upload(ctx, userID, blob)
	c.finish(err == nil)
	span.RecordError(err)
	if err != nil {
		logger.Error("video upload failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		return Result{}, err
	}

	logger.Info("video uploaded", slog.String("user_id", userID), slog.String("key", result.Key))
	return result, nil
}

func (c *Client) upload(ctx context.Context, userID string, blob io.Reader) (Result, error) {
	result := Result{Name: ObjectName(userID, c.now())}

	if c.Direct != nil {
		result.Key = path.Join(strings.Trim(c.KeyPrefix, "/"), result.Name)
		location, err := c.Direct.Save(ctx, result.Key, ContentType, blob)
		if err != nil {
			return Result{}, fmt.Errorf("store video: %w", err)
		}
		result.Location = location
	} else {
		slot, err := c.Slots.RequestSlot(ctx, result.Name, ContentType)
		if err != nil {
			return Result{}, fmt.Errorf("request upload slot: %w", err)
		}
		if err := c.put(ctx, slot.URL, blob); err != nil {
			return Result{}, err
		}
		result.Key = slot.Key
		if result.Key == "" {
			result.Key = result.Name
		}
	}

	if c.Reader != nil {
		playback, err := c.Reader.SignedReadURL(ctx, result.Key)
		if err != nil {
			return Result{}, fmt.Errorf("resolve playback url: %w", err)
		}
		result.PlaybackURL = playback
	}

	if c.Profiles != nil {
		if err := c.Profiles.SetVideoReference(ctx, userID, result.Key); err != nil {
			return Result{}, fmt.Errorf("save video reference: %w", err)
		}
	}

	return result, nil
}

func (c *Client) put(ctx context.Context, signedURL string, blob io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, blob)
	if err != nil {
		return &TransferError{Err: err}
	}
	req.Header.Set("Content-Type", ContentType)

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return &TransferError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransferError{StatusCode: resp.StatusCode}
	}
	return nil
}

func (c *Client) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.uploading {
		return ErrUploadInProgress
	}
	c.uploading = true
	c.progress = 0
	return nil
}

func (c *Client) finish(ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploading = false
	if ok {
		c.progress = 100
	} else {
		c.progress = 0
	}
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}
