package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
camera:
  stream_url: rtsp://example/stream
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Camera.FPS != 30 {
		t.Errorf("Camera.FPS = %d, want default 30", cfg.Camera.FPS)
	}
	if cfg.Pipeline.TriggerClass != "cat" {
		t.Errorf("Pipeline.TriggerClass = %q, want default %q", cfg.Pipeline.TriggerClass, "cat")
	}
	if cfg.Flap.Mode != "local" {
		t.Errorf("Flap.Mode = %q, want default %q", cfg.Flap.Mode, "local")
	}
	if cfg.Dispatcher.QueueCapacity != 50 {
		t.Errorf("Dispatcher.QueueCapacity = %d, want default 50", cfg.Dispatcher.QueueCapacity)
	}
	if len(cfg.Detector.ClassesOfInterest) == 0 {
		t.Error("Detector.ClassesOfInterest default was not applied")
	}
}

func TestLoadRespectsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
flap:
  mode: remote
  remote_base_url: http://flap.local
dispatcher:
  queue_capacity: 7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Flap.Mode != "remote" {
		t.Errorf("Flap.Mode = %q, want %q", cfg.Flap.Mode, "remote")
	}
	if cfg.Dispatcher.QueueCapacity != 7 {
		t.Errorf("Dispatcher.QueueCapacity = %d, want explicit 7", cfg.Dispatcher.QueueCapacity)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	path := writeConfig(t, "flap:\n  mode: local\n")
	t.Setenv("CATDOOR_FLAP_MODE", "remote")
	t.Setenv("CATDOOR_FLAP_REMOTE_BASE_URL", "http://override.local")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Flap.Mode != "remote" {
		t.Errorf("Flap.Mode = %q, want env override %q", cfg.Flap.Mode, "remote")
	}
	if cfg.Flap.RemoteBaseURL != "http://override.local" {
		t.Errorf("Flap.RemoteBaseURL = %q, want env override", cfg.Flap.RemoteBaseURL)
	}
}

func TestLockDurationConversion(t *testing.T) {
	fc := FlapConfig{LockTime: 2.5}
	if got := fc.LockDuration(); got.Seconds() != 2.5 {
		t.Errorf("LockDuration() = %v, want 2.5s", got)
	}
}
