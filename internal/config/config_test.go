package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "session-secret")
	t.Setenv("CHECKIN_QR_SECRET", "qr-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CheckIn.HandleTTL != 90*time.Second {
		t.Errorf("expected 90s handle TTL, got %v", cfg.CheckIn.HandleTTL)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Errorf("expected postgres storage, got %q", cfg.Storage.Driver)
	}
	if cfg.Operations.Location == nil || cfg.Operations.Location.String() != "UTC" {
		t.Errorf("expected UTC location, got %v", cfg.Operations.Location)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "session-secret")
	t.Setenv("CHECKIN_QR_SECRET", "qr-secret")
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("CHECKIN_HANDLE_TTL", "2m")
	t.Setenv("SERVICE_TIMEZONE", "Asia/Dubai")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("expected memory storage, got %q", cfg.Storage.Driver)
	}
	if cfg.CheckIn.HandleTTL != 2*time.Minute {
		t.Errorf("expected 2m handle TTL, got %v", cfg.CheckIn.HandleTTL)
	}
	if cfg.Operations.Location.String() != "Asia/Dubai" {
		t.Errorf("expected Asia/Dubai, got %v", cfg.Operations.Location)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.Server.CORSOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"missing jwt secret", map[string]string{"CHECKIN_QR_SECRET": "x"}},
		{"missing qr secret", map[string]string{"AUTH_JWT_SECRET": "x"}},
		{"bad driver", map[string]string{"AUTH_JWT_SECRET": "x", "CHECKIN_QR_SECRET": "y", "STORAGE_DRIVER": "mysql"}},
		{"bad timezone", map[string]string{"AUTH_JWT_SECRET": "x", "CHECKIN_QR_SECRET": "y", "SERVICE_TIMEZONE": "Mars/Olympus"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("AUTH_JWT_SECRET", "")
			t.Setenv("CHECKIN_QR_SECRET", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
