package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/candidly/backend/internal/auth"
	"github.com/candidly/backend/internal/logging"
	"github.com/candidly/backend/internal/models"
	"github.com/candidly/backend/internal/repositories"
)

// ProfileReader loads a candidate profile.
type ProfileReader interface {
	Find(ctx context.Context, userID string) (models.Profile, error)
}

// ResumeCounter counts the resumes uploaded by a user.
type ResumeCounter interface {
	CountForUser(ctx context.Context, userID string) (int, error)
}

// StageResolver computes the onboarding stage for the session on ctx.
type StageResolver interface {
	Resolve(ctx context.Context) (Stage, error)
}

// Resolver derives the stage from the profile and resume records. The profile is
// always read before resumes are counted.
type Resolver struct {
	Profiles ProfileReader
	Resumes  ResumeCounter
}

// Resolve returns StageProfile without touching storage when ctx carries no session.
func (r Resolver) Resolve(ctx context.Context) (Stage, error) {
	session, err := auth.CurrentSession(ctx)
	if err != nil {
		return StageProfile, nil
	}

	ctx, span := logging.StartSpan(ctx, "onboarding.resolve")
	defer span.End()

	stage, err := r.resolve(ctx, session.UserID)
	span.RecordError(err)
	return stage, err
}

func (r Resolver) resolve(ctx context.Context, userID string) (Stage, error) {
	logger := logging.FromContext(ctx)

	if r.Profiles == nil || r.Resumes == nil {
		return StageProfile, errors.New("onboarding resolver is not configured")
	}

	profile, err := r.Profiles.Find(ctx, userID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		logger.Debug("no profile yet", slog.String("user_id", userID))
		return StageProfile, nil
	case err != nil:
		return StageProfile, fmt.Errorf("load profile: %w", err)
	}
	if !profile.Complete() {
		return StageProfile, nil
	}

	count, err := r.Resumes.CountForUser(ctx, userID)
	if err != nil {
		return StageProfile, fmt.Errorf("count resumes: %w", err)
	}

	stage := StageFor(true, count > 0)
	logger.Debug("onboarding stage resolved", slog.String("user_id", userID), slog.String("stage", stage.String()))
	return stage, nil
}

var _ StageResolver = Resolver{}
