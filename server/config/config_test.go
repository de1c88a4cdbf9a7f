package config_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ponyo877/livedeck/server/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir failed: %v", err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load(newTestLogger(), "livedeck")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.HTTPAddress != ":8080" || cfg.Server.GRPCAddress != ":50051" {
		t.Errorf("unexpected addresses: %+v", cfg.Server)
	}
	if cfg.Presence.LivenessWindow != 45*time.Second {
		t.Errorf("liveness window = %v", cfg.Presence.LivenessWindow)
	}
	if cfg.Authorizer.CacheTTL != time.Minute {
		t.Errorf("cache ttl = %v", cfg.Authorizer.CacheTTL)
	}
	if cfg.Broadcaster.StrictBounds {
		t.Error("strict bounds should default to off")
	}
	if cfg.Analytics.QueueSize != 1024 || cfg.Analytics.Workers != 2 {
		t.Errorf("unexpected analytics config: %+v", cfg.Analytics)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	content := `server:
  httpAddress: ":9090"
presence:
  livenessWindow: 0s
broadcaster:
  strictBounds: true
transport:
  allowedOrigins:
    - https://slides.example.com
`
	if err := os.WriteFile(filepath.Join(dir, "livedeck.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv("LIVEDECK_ANALYTICS_WORKERS", "5")

	cfg, err := config.Load(newTestLogger(), "livedeck")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.HTTPAddress != ":9090" {
		t.Errorf("http address = %q", cfg.Server.HTTPAddress)
	}
	if cfg.Presence.LivenessWindow != 0 {
		t.Errorf("liveness window = %v, want 0", cfg.Presence.LivenessWindow)
	}
	if !cfg.Broadcaster.StrictBounds {
		t.Error("strict bounds not read from file")
	}
	if len(cfg.Transport.AllowedOrigins) != 1 {
		t.Errorf("allowed origins = %v", cfg.Transport.AllowedOrigins)
	}
	if cfg.Analytics.Workers != 5 {
		t.Errorf("workers = %d, want 5 from env", cfg.Analytics.Workers)
	}
}
