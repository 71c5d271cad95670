package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CANDIDLY_PORT", "")
	t.Setenv("CANDIDLY_STORAGE_BACKEND", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ObjectStore.Backend != BackendS3 {
		t.Fatalf("expected s3 backend got %q", cfg.ObjectStore.Backend)
	}
	if cfg.ObjectStore.UploadURLTTL != 3600*time.Second {
		t.Fatalf("unexpected upload ttl %v", cfg.ObjectStore.UploadURLTTL)
	}
	if cfg.ObjectStore.ReadURLTTL != 36000*time.Second {
		t.Fatalf("unexpected read ttl %v", cfg.ObjectStore.ReadURLTTL)
	}
	if cfg.ObjectStore.VideoPrefix != "videos" {
		t.Fatalf("unexpected video prefix %q", cfg.ObjectStore.VideoPrefix)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CANDIDLY_PORT", "9090")
	t.Setenv("CANDIDLY_STORAGE_BACKEND", "MinIO")
	t.Setenv("CANDIDLY_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("CANDIDLY_STORAGE_USE_SSL", "false")
	t.Setenv("SUPABASE_URL", "https://project.supabase.co/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 9090 {
		t.Fatalf("expected port 9090 got %d", cfg.AppPort)
	}
	if cfg.ObjectStore.Backend != BackendMinIO {
		t.Fatalf("expected minio backend got %q", cfg.ObjectStore.Backend)
	}
	if cfg.ObjectStore.UseSSL {
		t.Fatal("expected ssl disabled")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Supabase.URL != "https://project.supabase.co" {
		t.Fatalf("expected trailing slash trimmed got %q", cfg.Supabase.URL)
	}
}

func TestAPIBaseURL(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"production", Config{Environment: EnvironmentProduction, AppPort: 8080}, defaultProductionAPIBaseURL},
		{"local", Config{Environment: EnvironmentLocal, AppPort: 8081}, "http://localhost:8081"},
		{"override", Config{Environment: EnvironmentProduction, APIBaseURLOverride: "https://staging.example/"}, "https://staging.example"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.APIBaseURL(); got != tc.want {
				t.Fatalf("APIBaseURL() = %q want %q", got, tc.want)
			}
		})
	}
}
