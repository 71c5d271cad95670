package handlers

import (
	"net/http"
	"time"

	"github.com/candidly/backend/internal/middleware"
	"github.com/candidly/backend/internal/onboarding"
	"github.com/candidly/backend/internal/storage"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	stages := onboarding.Resolver{Profiles: deps.Profiles, Resumes: deps.Resumes}

	health := HealthHandler{DB: deps.Health}
	upload := UploadHandler{Storage: deps.Storage, Prefix: deps.UploadPrefix, Limiter: deps.UploadLimiter}
	videos := VideoHandler{
		Storage:  deps.Storage,
		Profiles: deps.Profiles,
		Prefix:   deps.VideoPrefix,
		MaxBytes: deps.MaxVideoBytes,
		Limiter:  deps.UploadLimiter,
		NowFunc:  deps.NowFunc,
	}
	profiles := ProfileHandler{Profiles: deps.Profiles, Stages: stages, NowFunc: deps.NowFunc}
	resumes := ResumeHandler{
		Storage: deps.Storage,
		Resumes: deps.Resumes,
		Stages:  stages,
		Prefix:  deps.ResumePrefix,
		Limiter: deps.UploadLimiter,
	}
	onboard := OnboardingHandler{Stages: stages}
	sessions := SessionHandler{}

	protected := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireSession(h)
	}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/upload", upload.Create)
	mux.HandleFunc("/api/v1/onboarding", onboard.Resolve)
	mux.Handle("/video/presigned-url", protected(videos.PresignedURL))
	mux.Handle("/video/signed-url", protected(videos.SignedURL))
	mux.Handle("/api/v1/videos", protected(videos.Upload))
	mux.Handle("/api/v1/session", protected(sessions.Current))
	mux.Handle("/api/v1/profile", protected(profiles.Profile))
	mux.Handle("/api/v1/profile/video", protected(profiles.Video))
	mux.Handle("/api/v1/resumes", protected(resumes.Create))
	mux.Handle("/api/v1/resumes/upload-url", protected(resumes.UploadURL))
	mux.Handle("/api/v1/resumes/status", protected(resumes.Status))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Storage       storage.Backend
	Profiles      ProfileStore
	Resumes       ResumeStore
	Health        Pinger
	UploadLimiter RateLimiter
	UploadPrefix  string
	VideoPrefix   string
	ResumePrefix  string
	MaxVideoBytes int64
	NowFunc       func() time.Time
}
