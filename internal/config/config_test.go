package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Tasks.MaxConcurrent != 2 {
		t.Errorf("MaxConcurrent = %d, want 2", cfg.Tasks.MaxConcurrent)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Logging.Level)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
  base_path: /dw/
tv:
  library_path: /mnt/tv
tasks:
  max_concurrent: 5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.BasePath != "/dw" {
		t.Errorf("BasePath = %q, want /dw (trailing slash trimmed)", cfg.Server.BasePath)
	}
	if cfg.TV.LibraryPath != "/mnt/tv" {
		t.Errorf("LibraryPath = %q, want /mnt/tv", cfg.TV.LibraryPath)
	}
	if cfg.Tasks.MaxConcurrent != 5 {
		t.Errorf("MaxConcurrent = %d, want 5", cfg.Tasks.MaxConcurrent)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DW_PORT", "7070")
	t.Setenv("DW_MAX_CONCURRENT_TASKS", "3")
	t.Setenv("DW_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Tasks.MaxConcurrent != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", cfg.Tasks.MaxConcurrent)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoad_InvalidCeiling(t *testing.T) {
	for _, n := range []string{"0", "11", "-1"} {
		t.Setenv("DW_MAX_CONCURRENT_TASKS", n)
		if _, err := Load(""); err == nil {
			t.Errorf("Load with ceiling %s: expected error", n)
		}
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("DW_PORT", "70000")
	if _, err := Load(""); err == nil {
		t.Error("expected error for out-of-range port")
	}
}
