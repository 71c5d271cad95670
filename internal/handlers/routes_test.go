package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegisterRoutesRequiresSession(t *testing.T) {
	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Storage:      &stubBackend{},
		Profiles:     newStubProfiles(),
		Resumes:      newStubResumes(),
		UploadPrefix: "videos",
		VideoPrefix:  "videos",
		ResumePrefix: "resumes",
	})

	protected := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/video/presigned-url"},
		{http.MethodGet, "/video/signed-url?key=videos/u_1.mp4"},
		{http.MethodPost, "/api/v1/videos"},
		{http.MethodGet, "/api/v1/session"},
		{http.MethodGet, "/api/v1/profile"},
		{http.MethodPut, "/api/v1/profile/video"},
		{http.MethodPost, "/api/v1/resumes"},
		{http.MethodPost, "/api/v1/resumes/upload-url"},
		{http.MethodGet, "/api/v1/resumes/status"},
	}
	for _, route := range protected {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected status 401 got %d", route.method, route.path, rec.Code)
		}
	}

	public := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/api/v1/onboarding?page=profile", "", http.StatusOK},
		{http.MethodPost, "/api/upload", `{"fileName":"a.mp4","fileType":"video/mp4"}`, http.StatusOK},
		{http.MethodPost, "/api/upload", `{"fileName":"victim-uuid_1714550000000.mp4","fileType":"video/mp4"}`, http.StatusForbidden},
	}
	for _, route := range public {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(route.method, route.path, strings.NewReader(route.body)))
		if rec.Code != route.want {
			t.Fatalf("%s %s: expected status %d got %d", route.method, route.path, route.want, rec.Code)
		}
	}
}

func TestRegisterRoutesAuthenticatedProfileFlow(t *testing.T) {
	profiles := newStubProfiles()
	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{Profiles: profiles, Resumes: newStubResumes()})

	body := `{"fullName":"Ada","phone":"1","experience":"3","linkedin":"in/ada","email":"ada@example.com"}`
	req := withSession(httptest.NewRequest(http.MethodPut, "/api/v1/profile", strings.NewReader(body)), "user-1")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"stage":"resume"`) {
		t.Fatalf("expected resume stage in %s", rec.Body.String())
	}
}
