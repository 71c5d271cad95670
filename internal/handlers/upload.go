package handlers

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/candidly/backend/internal/auth"
	"github.com/candidly/backend/internal/logging"
	"github.com/candidly/backend/internal/metrics"
	"github.com/candidly/backend/internal/storage"
)

// signingFailedMessage is the exact body clients match on when signing fails.
const signingFailedMessage = "Failed to generate signed URL"

// recordingName matches the {userID}_{unixMillis}.mp4 names written by the recorder.
var recordingName = regexp.MustCompile(`_[0-9]+\.mp4$`)

// UploadHandler issues signed write URLs for browser uploads.
type UploadHandler struct {
	Storage storage.Backend
	Prefix  string
	Limiter RateLimiter
}

type uploadRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

type uploadResponse struct {
	SignedURL string `json:"signedUrl"`
	URL       string `json:"url"`
}

// Create handles POST /api/upload.
func (h UploadHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, w, r, "upload") {
		return
	}

	if h.Storage == nil {
		logger.Error("storage backend unavailable")
		respondError(ctx, w, http.StatusInternalServerError, signingFailedMessage)
		return
	}

	var req uploadRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid upload payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.FileType = strings.TrimSpace(req.FileType)
	if !storage.ValidFileName(req.FileName) || req.FileType == "" {
		logger.Warn("upload request rejected", "fileName", req.FileName, "fileType", req.FileType)
		respondError(ctx, w, http.StatusBadRequest, "fileName and fileType are required")
		return
	}

	if !mayWriteName(ctx, req.FileName) {
		logger.Warn("upload request for reserved name", "fileName", req.FileName)
		respondError(ctx, w, http.StatusForbidden, "fileName is reserved for recorded videos")
		return
	}

	key := storage.ObjectKey(h.Prefix, req.FileName)
	target, err := h.Storage.IssueUpload(ctx, key, req.FileType)
	metrics.ObserveSignedURL("upload", err)
	if err != nil {
		logger.Error("failed to issue upload url", "key", key, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, signingFailedMessage)
		return
	}

	respondJSON(ctx, w, http.StatusOK, uploadResponse{SignedURL: target.SignedURL, URL: target.PublicURL})
}

// mayWriteName keeps recording names for their owner. Anyone may write other names.
func mayWriteName(ctx context.Context, name string) bool {
	if !recordingName.MatchString(name) {
		return true
	}
	session, err := auth.CurrentSession(ctx)
	if err != nil || session.UserID == "" {
		return false
	}
	digits := strings.TrimSuffix(strings.TrimPrefix(name, session.UserID+"_"), ".mp4")
	return strings.HasPrefix(name, session.UserID+"_") && digits != "" && strings.Trim(digits, "0123456789") == ""
}
