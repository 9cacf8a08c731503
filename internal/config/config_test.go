package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.NumStorages != 3 {
		t.Errorf("expected default num_storages 3, got %d", cfg.NumStorages)
	}
	if cfg.PingInterval() != 5*time.Second {
		t.Errorf("expected default ping interval 5s, got %s", cfg.PingInterval())
	}
	if cfg.HashPrefix != "storage" {
		t.Errorf("expected default hash_prefix %q, got %q", "storage", cfg.HashPrefix)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triod.yaml")
	yaml := "num_storages: 5\nping_interval: 10\nhash_prefix: \"s\"\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("failed to write fixture config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}

	if cfg.NumStorages != 5 {
		t.Errorf("expected num_storages 5, got %d", cfg.NumStorages)
	}
	if cfg.PingInterval() != 10*time.Second {
		t.Errorf("expected ping interval 10s, got %s", cfg.PingInterval())
	}
	if cfg.HashPrefix != "s" {
		t.Errorf("expected hash_prefix %q, got %q", "s", cfg.HashPrefix)
	}
	// Keys the fixture didn't set fall back to Default's values.
	if cfg.MaxRetries != Default().MaxRetries {
		t.Errorf("expected unset max_retries to keep the default %d, got %d", Default().MaxRetries, cfg.MaxRetries)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("num_storages: [this is not valid"), 0o644); err != nil {
		t.Fatalf("failed to write fixture config: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
