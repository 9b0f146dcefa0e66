package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Port == 0 || cfg.DataDir == "" || cfg.BaseURL == "" {
		t.Fatalf("default config invalid: %+v", cfg)
	}
	if cfg.StatusInterval() != 1500*time.Millisecond {
		t.Fatalf("unexpected default status interval: %v", cfg.StatusInterval())
	}
	if cfg.LogsInterval() != 2*time.Second {
		t.Fatalf("unexpected default logs interval: %v", cfg.LogsInterval())
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load("not_exists.yml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadReadsAndNormalizes(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "cfg.yml")
	content := []byte("port: 9090\nbase_url: http://backend:8000/\ndata_dir: testdata\nstatus_interval_ms: 500\nlogs_interval_ms: 800\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != 9090 || cfg.DataDir != "testdata" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.BaseURL != "http://backend:8000" {
		t.Fatalf("base url not normalized: %q", cfg.BaseURL)
	}
	if cfg.StatusInterval() != 500*time.Millisecond || cfg.LogsInterval() != 800*time.Millisecond {
		t.Fatalf("intervals not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidIntervals(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "cfg.yml")
	if err := os.WriteFile(path, []byte("status_interval_ms: -5\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for negative interval")
	}
}

func TestLoadEmptyFileReturnsDefaults(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "cfg.yml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults for empty file, got %+v", cfg)
	}
}
