package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/candidly/backend/internal/onboarding"
)

func TestResumeHandlerUploadURL(t *testing.T) {
	backend := &stubBackend{}
	handler := ResumeHandler{Storage: backend, Prefix: "resumes"}

	req := withSession(httptest.NewRequest(http.MethodPost, "/api/v1/resumes/upload-url", strings.NewReader(`{"fileName":"cv.pdf","contentType":"application/pdf"}`)), "user-1")
	rec := httptest.NewRecorder()
	handler.UploadURL(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp presignResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Key != "resumes/user-1_cv.pdf" {
		t.Fatalf("unexpected key %q", resp.Key)
	}

	req = withSession(httptest.NewRequest(http.MethodPost, "/api/v1/resumes/upload-url", strings.NewReader(`{"fileName":"../cv.pdf","contentType":"application/pdf"}`)), "user-1")
	rec = httptest.NewRecorder()
	handler.UploadURL(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}

	handler.Storage = &stubBackend{uploadErr: errBoom}
	req = withSession(httptest.NewRequest(http.MethodPost, "/api/v1/resumes/upload-url", strings.NewReader(`{"fileName":"cv.pdf","contentType":"application/pdf"}`)), "user-1")
	rec = httptest.NewRecorder()
	handler.UploadURL(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
}

func TestResumeHandlerCreateAdvancesStage(t *testing.T) {
	profiles := newStubProfiles(completeProfile("user-1"))
	resumes := newStubResumes()
	handler := ResumeHandler{
		Storage: &stubBackend{},
		Resumes: resumes,
		Stages:  onboarding.Resolver{Profiles: profiles, Resumes: resumes},
		Prefix:  "resumes",
	}

	body := `{"objectKey":"resumes/user-1_cv.pdf","fileName":"cv.pdf","contentType":"application/pdf"}`
	rec := httptest.NewRecorder()
	handler.Create(rec, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader(body)), "user-1"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp resumeCreateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Stage != onboarding.StageDashboard {
		t.Fatalf("expected dashboard stage got %q", resp.Stage)
	}
	if resp.Resume.UserID != "user-1" || resp.Resume.ObjectKey != "resumes/user-1_cv.pdf" {
		t.Fatalf("unexpected resume %+v", resp.Resume)
	}

	rec = httptest.NewRecorder()
	handler.Create(rec, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader(body)), "user-1"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409 got %d", rec.Code)
	}
}

func TestResumeHandlerCreateRejectsForeignKey(t *testing.T) {
	resumes := newStubResumes()
	handler := ResumeHandler{Resumes: resumes, Prefix: "resumes"}

	body := `{"objectKey":"resumes/user-2_cv.pdf","fileName":"cv.pdf"}`
	rec := httptest.NewRecorder()
	handler.Create(rec, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader(body)), "user-1"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if len(resumes.created) != 0 {
		t.Fatalf("expected no resume created, got %v", resumes.created)
	}
}

func TestResumeHandlerCreateRequiresUploadedObject(t *testing.T) {
	tests := []struct {
		name    string
		backend *stubBackend
		want    int
	}{
		{name: "not uploaded", backend: &stubBackend{missing: map[string]bool{"resumes/user-1_cv.pdf": true}}, want: http.StatusBadRequest},
		{name: "lookup failure", backend: &stubBackend{existsErr: errBoom}, want: http.StatusBadGateway},
		{name: "no storage", want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := newStubProfiles(completeProfile("user-1"))
			resumes := newStubResumes()
			handler := ResumeHandler{
				Resumes: resumes,
				Stages:  onboarding.Resolver{Profiles: profiles, Resumes: resumes},
				Prefix:  "resumes",
			}
			if tt.backend != nil {
				handler.Storage = tt.backend
			}

			body := `{"objectKey":"resumes/user-1_cv.pdf","fileName":"cv.pdf","contentType":"application/pdf"}`
			rec := httptest.NewRecorder()
			handler.Create(rec, withSession(httptest.NewRequest(http.MethodPost, "/api/v1/resumes", strings.NewReader(body)), "user-1"))

			if rec.Code != tt.want {
				t.Fatalf("expected status %d got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
			if len(resumes.created) != 0 {
				t.Fatalf("expected no resume created, got %v", resumes.created)
			}
			stage, err := handler.Stages.Resolve(withSession(httptest.NewRequest(http.MethodGet, "/", nil), "user-1").Context())
			if err != nil || stage != onboarding.StageResume {
				t.Fatalf("expected candidate to stay on resume stage, got %s %v", stage, err)
			}
		})
	}
}

func TestResumeHandlerStatus(t *testing.T) {
	resumes := newStubResumes()
	resumes.counts["user-1"] = 2
	handler := ResumeHandler{Resumes: resumes}

	rec := httptest.NewRecorder()
	handler.Status(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/v1/resumes/status", nil), "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp resumeStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.HasResume || resp.Count != 2 {
		t.Fatalf("unexpected status %+v", resp)
	}

	resumes.countErr = errBoom
	rec = httptest.NewRecorder()
	handler.Status(rec, withSession(httptest.NewRequest(http.MethodGet, "/api/v1/resumes/status", nil), "user-1"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 got %d", rec.Code)
	}
}
