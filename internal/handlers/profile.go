package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/candidly/backend/internal/auth"
	"github.com/candidly/backend/internal/logging"
	"github.com/candidly/backend/internal/models"
	"github.com/candidly/backend/internal/onboarding"
	"github.com/candidly/backend/internal/repositories"
)

const maxVideoReferenceLength = 2048

// ProfileHandler reads and writes the candidate profile.
type ProfileHandler struct {
	Profiles ProfileStore
	Stages   onboarding.StageResolver
	NowFunc  func() time.Time
}

// textValue accepts a JSON string or number; the profile form posts years of
// experience as either.
type textValue string

func (t *textValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = textValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("expected a string or number")
	}
	*t = textValue(n.String())
	return nil
}

type profileRequest struct {
	FullName   string    `json:"fullName"`
	Phone      string    `json:"phone"`
	Experience textValue `json:"experience"`
	LinkedIn   string    `json:"linkedin"`
	Email      string    `json:"email"`
}

type profileResponse struct {
	Profile models.Profile   `json:"profile"`
	Stage   onboarding.Stage `json:"stage,omitempty"`
}

type videoReferenceRequest struct {
	VideoURL string `json:"videoUrl"`
}

// Profile handles GET and PUT /api/v1/profile.
func (h ProfileHandler) Profile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.get(w, r)
	case http.MethodPut:
		h.put(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h ProfileHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session, err := auth.CurrentSession(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "profile services unavailable")
		return
	}

	profile, err := h.Profiles.Find(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "profile not found")
			return
		}
		logger.Error("profile lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, profileResponse{Profile: profile})
}

func (h ProfileHandler) put(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	session, err := auth.CurrentSession(ctx)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}
	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "profile services unavailable")
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid profile payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = session.Email
	}
	profile := models.Profile{
		UserID:     session.UserID,
		FullName:   strings.TrimSpace(req.FullName),
		Phone:      strings.TrimSpace(req.Phone),
		Experience: strings.TrimSpace(string(req.Experience)),
		LinkedIn:   strings.TrimSpace(req.LinkedIn),
		Email:      email,
		UpdatedAt:  h.now(),
	}

	if err := h.Profiles.Upsert(ctx, profile); err != nil {
		logger.Error("profile upsert failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to save profile")
		return
	}

	resp := profileResponse{Profile: profile}
	if stage, ok := refreshStage(ctx, h.Stages); ok {
		resp.Stage = stage
	}
	respondJSON(ctx, w, http.StatusOK, resp)
}

// Video handles PUT /api/v1/profile/video.
func (h ProfileHandler) Video(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
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
	if h.Profiles == nil {
		logger.Error("profile store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "profile services unavailable")
		return
	}

	var req videoReferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid video reference payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.VideoURL = strings.TrimSpace(req.VideoURL)
	if req.VideoURL == "" || len(req.VideoURL) > maxVideoReferenceLength {
		respondError(ctx, w, http.StatusBadRequest, "videoUrl is required")
		return
	}

	if err := h.Profiles.SetVideoURL(ctx, session.UserID, req.VideoURL, h.now()); err != nil {
		logger.Error("video reference update failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to save video reference")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h ProfileHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
