package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/candidly/backend/internal/db"
	"github.com/candidly/backend/internal/models"
)

// ProfileRepository defines data access for candidate profiles.
type ProfileRepository interface {
	Find(ctx context.Context, userID string) (models.Profile, error)
	Upsert(ctx context.Context, profile models.Profile) error
	SetVideoURL(ctx context.Context, userID, videoURL string, at time.Time) error
}

// ResumeRepository defines data access for uploaded resumes.
type ResumeRepository interface {
	Create(ctx context.Context, resume models.Resume) (models.Resume, error)
	CountForUser(ctx context.Context, userID string) (int, error)
}

// PostgresProfileRepository provides PostgreSQL-backed persistence for profiles.
type PostgresProfileRepository struct {
	pool db.Pool
}

// NewPostgresProfileRepository constructs a profile repository backed by PostgreSQL.
func NewPostgresProfileRepository(pool db.Pool) *PostgresProfileRepository {
	return &PostgresProfileRepository{pool: pool}
}

// Find fetches the profile for userID.
func (r *PostgresProfileRepository) Find(ctx context.Context, userID string) (models.Profile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Profile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT user_id, full_name, phone, experience, linkedin, email, updated_at, COALESCE(video_url, '')
        FROM profiles
        WHERE user_id = $1
    `, userID)

	var profile models.Profile
	if err := row.Scan(&profile.UserID, &profile.FullName, &profile.Phone, &profile.Experience, &profile.LinkedIn, &profile.Email, &profile.UpdatedAt, &profile.VideoURL); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, ErrNotFound
		}
		return models.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	profile.UpdatedAt = profile.UpdatedAt.UTC()

	return profile, nil
}

// Upsert writes the form fields of profile. The video reference is left untouched.
// Concurrent writers are last-writer-wins.
func (r *PostgresProfileRepository) Upsert(ctx context.Context, profile models.Profile) error {
	if strings.TrimSpace(profile.UserID) == "" {
		return ErrMissingUser
	}
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now().UTC()
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO profiles (user_id, full_name, phone, experience, linkedin, email, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (user_id) DO UPDATE
        SET full_name = EXCLUDED.full_name,
            phone = EXCLUDED.phone,
            experience = EXCLUDED.experience,
            linkedin = EXCLUDED.linkedin,
            email = EXCLUDED.email,
            updated_at = EXCLUDED.updated_at
    `, profile.UserID, profile.FullName, profile.Phone, profile.Experience, profile.LinkedIn, profile.Email, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}

	return nil
}

// SetVideoURL stores the video reference, creating an empty profile when none exists yet.
func (r *PostgresProfileRepository) SetVideoURL(ctx context.Context, userID, videoURL string, at time.Time) error {
	if strings.TrimSpace(userID) == "" {
		return ErrMissingUser
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO profiles (user_id, video_url, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id) DO UPDATE
        SET video_url = EXCLUDED.video_url,
            updated_at = EXCLUDED.updated_at
    `, userID, videoURL, at)
	if err != nil {
		return fmt.Errorf("update profile video: %w", err)
	}

	return nil
}

// PostgresResumeRepository provides PostgreSQL-backed persistence for resumes.
type PostgresResumeRepository struct {
	pool db.Pool
}

// NewPostgresResumeRepository constructs a resume repository backed by PostgreSQL.
func NewPostgresResumeRepository(pool db.Pool) *PostgresResumeRepository {
	return &PostgresResumeRepository{pool: pool}
}

// Create records an uploaded resume and returns it with its identifier filled in.
func (r *PostgresResumeRepository) Create(ctx context.Context, resume models.Resume) (models.Resume, error) {
	if strings.TrimSpace(resume.UserID) == "" {
		return models.Resume{}, ErrMissingUser
	}
	if resume.ID == "" {
		resume.ID = uuid.NewString()
	}
	if resume.CreatedAt.IsZero() {
		resume.CreatedAt = time.Now().UTC()
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Resume{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO resumes (id, user_id, object_key, file_name, content_type, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, resume.ID, resume.UserID, resume.ObjectKey, resume.FileName, resume.ContentType, resume.CreatedAt)
	if err != nil {
		if mapped := translate(err); mapped != err {
			return models.Resume{}, mapped
		}
		return models.Resume{}, fmt.Errorf("insert resume: %w", err)
	}

	return resume, nil
}

// CountForUser returns how many resumes userID has uploaded.
func (r *PostgresResumeRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM resumes WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count resumes: %w", err)
	}

	return count, nil
}

var _ ProfileRepository = (*PostgresProfileRepository)(nil)
var _ ResumeRepository = (*PostgresResumeRepository)(nil)
