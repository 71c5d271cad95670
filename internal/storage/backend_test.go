package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/candidly/backend/internal/config"
)

func TestValidFileName(t *testing.T) {
	valid := []string{"clip.mp4", "user-1_1700000000000.mp4", "résumé.pdf"}
	invalid := []string{"", "../clip.mp4", "a/b.mp4", `a\b.mp4`, " clip.mp4", "clip..mp4", strings.Repeat("a", 201)}

	for _, name := range valid {
		if !ValidFileName(name) {
			t.Fatalf("expected %q to be valid", name)
		}
	}
	for _, name := range invalid {
		if ValidFileName(name) {
			t.Fatalf("expected %q to be invalid", name)
		}
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("videos", "clip.mp4"); got != "videos/clip.mp4" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ObjectKey("/videos/", "clip.mp4"); got != "videos/clip.mp4" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ObjectKey("", "clip.mp4"); got != "clip.mp4" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), config.ObjectStoreConfig{Backend: "ftp"}, config.SupabaseConfig{}, nil)
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	backend, err := New(context.Background(), config.ObjectStoreConfig{
		Backend:  config.BackendMinIO,
		Bucket:   "b",
		Endpoint: "localhost:9000",
		Region:   "us-east-1",
	}, config.SupabaseConfig{}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := backend.(*MinIOBackend); !ok {
		t.Fatalf("expected MinIO backend got %T", backend)
	}

	backend, err = New(context.Background(), config.ObjectStoreConfig{
		Backend: config.BackendSupabase,
		Bucket:  "b",
	}, config.SupabaseConfig{URL: "https://x.supabase.co"}, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := backend.(*SupabaseBackend); !ok {
		t.Fatalf("expected Supabase backend got %T", backend)
	}
}
