package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/candidly/backend/internal/auth"
	"github.com/candidly/backend/internal/logging"
	"github.com/candidly/backend/internal/metrics"
	"github.com/candidly/backend/internal/models"
	"github.com/candidly/backend/internal/onboarding"
	"github.com/candidly/backend/internal/repositories"
	"github.com/candidly/backend/internal/storage"
)

// ResumeHandler issues resume upload URLs and records finished uploads.
type ResumeHandler struct {
	Storage storage.Backend
	Resumes ResumeStore
	Stages  onboarding.StageResolver
	Prefix  string
	Limiter RateLimiter
}

type resumeUploadRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type resumeCreateRequest struct {
	ObjectKey   string `json:"objectKey"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
}

type resumeCreateResponse struct {
	Resume models.Resume    `json:"resume"`
	Stage  onboarding.Stage `json:"stage,omitempty"`
}

type resumeStatusResponse struct {
	HasResume bool `json:"hasResume"`
	Count     int  `json:"count"`
}

// UploadURL handles POST /api/v1/resumes/upload-url.
func (h ResumeHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
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
	if !allowRequest(h.Limiter, w, r, "resume-presign") {
		return
	}
	if h.Storage == nil {
		logger.Error("storage backend unavailable")
		respondError(ctx, w, http.StatusInternalServerError, signingFailedMessage)
		return
	}

	var req resumeUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid resume upload payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := session.UserID + "_" + req.FileName
	if req.FileName == "" || !storage.ValidFileName(name) || strings.TrimSpace(req.ContentType) == "" {
		respondError(ctx, w, http.StatusBadRequest, "fileName and contentType are required")
		return
	}

	target, err := h.Storage.IssueUpload(ctx, storage.ObjectKey(h.Prefix, name), req.ContentType)
	metrics.ObserveSignedURL("upload", err)
	if err != nil {
		logger.Error("failed to presign resume upload", "error", err)
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

// Create handles POST /api/v1/resumes once the browser finished uploading.
func (h ResumeHandler) Create(w http.ResponseWriter, r *http.Request) {
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
	if h.Resumes == nil {
		logger.Error("resume store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "resume services unavailable")
		return
	}

	var req resumeCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid resume payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	key := strings.TrimPrefix(strings.TrimSpace(req.ObjectKey), "/")
	if !ownsKey(h.Prefix, session.UserID, key) {
		respondError(ctx, w, http.StatusBadRequest, "objectKey must reference one of your uploads")
		return
	}
	if h.Storage == nil {
		logger.Error("storage backend unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "resume services unavailable")
		return
	}
	uploaded, err := h.Storage.Exists(ctx, key)
	if err != nil {
		logger.Error("resume upload lookup failed", "key", key, "error", err)
		respondError(ctx, w, http.StatusBadGateway, "unable to verify resume upload")
		return
	}
	if !uploaded {
		respondError(ctx, w, http.StatusBadRequest, "objectKey has not been uploaded")
		return
	}

	resume, err := h.Resumes.Create(ctx, models.Resume{
		UserID:      session.UserID,
		ObjectKey:   key,
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "resume already recorded")
			return
		}
		logger.Error("resume create failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to record resume")
		return
	}

	resp := resumeCreateResponse{Resume: resume}
	if stage, ok := refreshStage(ctx, h.Stages); ok {
		resp.Stage = stage
	}
	respondJSON(ctx, w, http.StatusCreated, resp)
}

// Status handles GET /api/v1/resumes/status.
func (h ResumeHandler) Status(w http.ResponseWriter, r *http.Request) {
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
	if h.Resumes == nil {
		logger.Error("resume store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "resume services unavailable")
		return
	}

	count, err := h.Resumes.CountForUser(ctx, session.UserID)
	if err != nil {
		logger.Error("resume count failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load resumes")
		return
	}

	respondJSON(ctx, w, http.StatusOK, resumeStatusResponse{HasResume: count > 0, Count: count})
}
