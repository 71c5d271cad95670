package handlers

import (
	"context"
	"time"

	"github.com/candidly/backend/internal/models"
)

// ProfileStore captures the persistence operations required by the profile handlers.
type ProfileStore interface {
	Find(ctx context.Context, userID string) (models.Profile, error)
	Upsert(ctx context.Context, profile models.Profile) error
	SetVideoURL(ctx context.Context, userID, videoURL string, at time.Time) error
}

// ResumeStore captures the resume operations required by onboarding and the resume handlers.
type ResumeStore interface {
	Create(ctx context.Context, resume models.Resume) (models.Resume, error)
	CountForUser(ctx context.Context, userID string) (int, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
