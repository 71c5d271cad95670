package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/candidly/backend/internal/auth"
	"github.com/candidly/backend/internal/models"
	"github.com/candidly/backend/internal/repositories"
	"github.com/candidly/backend/internal/storage"
)

type stubBackend struct {
	mu         sync.Mutex
	uploadErr  error
	readErr    error
	saveErr    error
	existsErr  error
	missing    map[string]bool
	issuedKeys []string
	readKeys   []string
	saved      map[string][]byte
	savedTypes map[string]string
}

func (s *stubBackend) IssueUpload(_ context.Context, key, contentType string) (storage.UploadTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return storage.UploadTarget{}, &storage.SigningError{Op: "presign upload", Key: key, Err: s.uploadErr}
	}
	s.issuedKeys = append(s.issuedKeys, key)
	return storage.UploadTarget{
		Key:       key,
		SignedURL: "https://signed.example.com/" + key + "?sig=1",
		Method:    http.MethodPut,
		PublicURL: s.PublicURL(key),
		ExpiresAt: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC),
	}, nil
}

func (s *stubBackend) IssueRead(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return "", &storage.SigningError{Op: "presign read", Key: key, Err: s.readErr}
	}
	s.readKeys = append(s.readKeys, key)
	return "https://signed.example.com/" + key + "?read=1", nil
}

func (s *stubBackend) Save(_ context.Context, key, contentType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return "", &storage.TransferError{Key: key, Err: s.saveErr}
	}
	if s.saved == nil {
		s.saved = make(map[string][]byte)
		s.savedTypes = make(map[string]string)
	}
	s.saved[key] = data
	s.savedTypes[key] = contentType
	return s.PublicURL(key), nil
}

func (s *stubBackend) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, &storage.LookupError{Key: key, Err: s.existsErr}
	}
	return !s.missing[key], nil
}

func (s *stubBackend) PublicURL(key string) string {
	return "https://media.example.com/" + key
}

type stubProfiles struct {
	mu        sync.Mutex
	profiles  map[string]models.Profile
	findErr   error
	upsertErr error
	videoErr  error
	upserts   []models.Profile
	videoRefs map[string]string
}

func newStubProfiles(profiles ...models.Profile) *stubProfiles {
	s := &stubProfiles{profiles: make(map[string]models.Profile), videoRefs: make(map[string]string)}
	for _, p := range profiles {
		s.profiles[p.UserID] = p
	}
	return s
}

func (s *stubProfiles) Find(_ context.Context, userID string) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return models.Profile{}, s.findErr
	}
	profile, ok := s.profiles[userID]
	if !ok {
		return models.Profile{}, repositories.ErrNotFound
	}
	return profile, nil
}

func (s *stubProfiles) Upsert(_ context.Context, profile models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	profile.VideoURL = s.profiles[profile.UserID].VideoURL
	s.profiles[profile.UserID] = profile
	s.upserts = append(s.upserts, profile)
	return nil
}

func (s *stubProfiles) SetVideoURL(_ context.Context, userID, videoURL string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videoErr != nil {
		return s.videoErr
	}
	profile := s.profiles[userID]
	profile.UserID = userID
	profile.VideoURL = videoURL
	profile.UpdatedAt = at
	s.profiles[userID] = profile
	s.videoRefs[userID] = videoURL
	return nil
}

type stubResumes struct {
	mu       sync.Mutex
	counts   map[string]int
	created  []models.Resume
	keys     map[string]struct{}
	countErr error
}

func newStubResumes() *stubResumes {
	return &stubResumes{counts: make(map[string]int), keys: make(map[string]struct{})}
}

func (s *stubResumes) Create(_ context.Context, resume models.Resume) (models.Resume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[resume.ObjectKey]; ok {
		return models.Resume{}, repositories.ErrConflict
	}
	s.keys[resume.ObjectKey] = struct{}{}
	resume.ID = "resume-1"
	s.created = append(s.created, resume)
	s.counts[resume.UserID]++
	return resume, nil
}

func (s *stubResumes) CountForUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.counts[userID], nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) bool { return false }

var errBoom = errors.New("boom")

func completeProfile(userID string) models.Profile {
	return models.Profile{
		UserID:     userID,
		FullName:   "Ada Lovelace",
		Phone:      "555-0100",
		Experience: "7",
		LinkedIn:   "https://linkedin.com/in/ada",
		Email:      "ada@example.com",
	}
}

// withSession attaches a verified session for userID to req.
func withSession(req *http.Request, userID string) *http.Request {
	session := auth.Session{UserID: userID, Email: userID + "@example.com"}
	return req.WithContext(auth.WithSession(req.Context(), session))
}
