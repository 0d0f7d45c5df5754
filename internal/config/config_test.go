package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file errored: %v", err)
	}
	if cfg.StatePath == "" {
		t.Error("Default StatePath empty")
	}
	if time.Duration(cfg.CycleInterval) != 30*time.Minute {
		t.Errorf("CycleInterval = %v, want 30m", time.Duration(cfg.CycleInterval))
	}
	if !cfg.Idle.Enabled {
		t.Error("Idle gate disabled by default")
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dream.yaml")
	data := []byte(`
state_path: /var/lib/dream
cycle_interval: 5m
idle:
  enabled: false
  busy_threshold: 50
  idle_duration: 45s
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StatePath != "/var/lib/dream" {
		t.Errorf("StatePath = %s", cfg.StatePath)
	}
	if time.Duration(cfg.CycleInterval) != 5*time.Minute {
		t.Errorf("CycleInterval = %v, want 5m", time.Duration(cfg.CycleInterval))
	}
	if cfg.Idle.Enabled {
		t.Error("Idle.Enabled = true, want false")
	}
	if cfg.Idle.BusyThreshold != 50 {
		t.Errorf("BusyThreshold = %v, want 50", cfg.Idle.BusyThreshold)
	}
	if time.Duration(cfg.Idle.IdleDuration) != 45*time.Second {
		t.Errorf("IdleDuration = %v, want 45s", time.Duration(cfg.Idle.IdleDuration))
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dream.yaml")
	if err := os.WriteFile(path, []byte("cycle_interval: often\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for invalid duration")
	}
}
