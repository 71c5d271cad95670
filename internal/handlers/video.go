package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/candidly/backend/internal/auth"
	"github.com/candidly/backend/internal/logging"
	"github.com/candidly/backend/internal/metrics"
	"github.com/candidly/backend/internal/storage"
	"github.com/candidly/backend/internal/videoupload"
)

// VideoHandler serves the interview video endpoints.
type VideoHandler struct {
	Storage  storage.Backend
	Profiles ProfileStore
	Prefix   string
	MaxBytes int64
	Limiter  RateLimiter
	NowFunc  func() time.Time
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type presignResponse struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	PublicURL string    `json:"publicUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PresignedURL handles POST /video/presigned-url.
func (h VideoHandler) PresignedURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session, err := auth.CurrentSession(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !allowRequest(h.Limiter, w, r, "video-presign") {
		return
	}
	if h.Storage == nil {
		logger.Error("storage backend unavailable")
		respondError(ctx, w, http.StatusInternalServerError, signingFailedMessage)
		return
	}

	var req presignRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("invalid presign payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := req.FileName
	if name == "" {
		name = videoupload.ObjectName(session.UserID, h.now())
	}
	if !storage.ValidFileName(name) || !strings.HasPrefix(name, session.UserID+"_") {
		logger.Warn("presign rejected file name", "fileName", name)
		respondError(ctx, w, http.StatusBadRequest, "fileName must be a plain name starting with the user id")
		return
	}
	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = videoupload.ContentType
	}

	key := storage.ObjectKey(h.Prefix, name)
	target, err := h.Storage.IssueUpload(ctx, key, contentType)
	metrics.ObserveSignedURL("upload", err)
	if err != nil {
		logger.Error("failed to presign video upload", "key", key, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, signingFailedMessage)
		return
	}

	respondJSON(ctx, w, http.StatusOK, presignResponse{
		URL:       target.SignedURL,
		Key:       target.Key,
		PublicURL: target.PublicURL,
		ExpiresAt: target.ExpiresAt,
	})
}

// SignedURL handles GET /video/signed-url?key=.
func (h VideoHandler) SignedURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session, err := auth.CurrentSession(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.Storage == nil {
		logger.Error("storage backend unavailable")
		respondError(ctx, w, http.StatusInternalServerError, signingFailedMessage)
		return
	}

	key := strings.TrimPrefix(strings.TrimSpace(r.URL.Query().Get("key")), "/")
	if !ownsKey(h.Prefix, session.UserID, key) {
		logger.Warn("signed url requested for foreign key", "key", key)
		respondError(ctx, w, http.StatusForbidden, "key does not belong to the current user")
		return
	}

	signed, err := h.Storage.IssueRead(ctx, key)
	metrics.ObserveSignedURL("read", err)
	if err != nil {
		logger.Error("failed to sign read url", "key", key, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, signingFailedMessage)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"signedUrl": signed})
}

// Upload handles POST /api/v1/videos: the request body is the recording itself.
func (h VideoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session, err := auth.CurrentSession(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.Storage == nil || h.Profiles == nil {
		logger.Error("video dependencies unavailable", "hasStorage", h.Storage != nil, "hasProfiles", h.Profiles != nil)
		respondError(ctx, w, http.StatusInternalServerError, "video services unavailable")
		return
	}

	body := r.Body
	if h.MaxBytes > 0 {
		if r.ContentLength > h.MaxBytes {
			respondError(ctx, w, http.StatusRequestEntityTooLarge, "video is too large")
			return
		}
		body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	}

	client := &videoupload.Client{
		Direct:    h.Storage,
		KeyPrefix: h.Prefix,
		Reader:    videoupload.ReadURLFunc(h.Storage.IssueRead),
		Profiles: videoupload.ReferenceFunc(func(ctx context.Context, userID, reference string) error {
			return h.Profiles.SetVideoURL(ctx, userID, reference, h.now())
		}),
		Now: h.now,
	}

	result, err := client.Upload(ctx, session.UserID, body)
	metrics.ObserveVideoUpload(err)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(ctx, w, http.StatusRequestEntityTooLarge, "video is too large")
			return
		}
		logger.Error("video upload failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "video upload failed")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, result)
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// ownsKey reports whether key names an object userID created under prefix.
func ownsKey(prefix, userID, key string) bool {
	if key == "" || userID == "" {
		return false
	}
	name := path.Base(key)
	if !storage.ValidFileName(name) || !strings.HasPrefix(name, userID+"_") {
		return false
	}
	return storage.ObjectKey(prefix, name) == key
}
