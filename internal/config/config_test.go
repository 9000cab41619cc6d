package config

import (
	"os"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults when no config file", func(t *testing.T) {
		os.Remove("config.yml")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned an error: %v", err)
		}

		if cfg.Port != 8317 {
			t.Errorf("Expected default port 8317, got %d", cfg.Port)
		}
		if cfg.Database.Path != "./comicden.db" {
			t.Errorf("Expected default db path './comicden.db', got '%s'", cfg.Database.Path)
		}
		if cfg.Fetch.Concurrency != 5 {
			t.Errorf("Expected default fetch concurrency 5, got %d", cfg.Fetch.Concurrency)
		}
		if cfg.Fetch.Retries != 5 {
			t.Errorf("Expected default fetch retries 5, got %d", cfg.Fetch.Retries)
		}
	})

	t.Run("Loads from config file", func(t *testing.T) {
		configContent := `
port: 9999
cache:
  path: "/tmp/test-cache"
fetch:
  concurrency: 3
unknown_setting: "should be ignored"
`
		configPath := "config.yml"
		if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
			t.Fatalf("Failed to write test config file: %v", err)
		}
		defer os.Remove(configPath)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() returned an error: %v", err)
		}

		if cfg.Port != 9999 {
			t.Errorf("Expected port 9999, got %d", cfg.Port)
		}
		if cfg.Cache.Path != "/tmp/test-cache" {
			t.Errorf("Expected cache path '/tmp/test-cache', got '%s'", cfg.Cache.Path)
		}
		if cfg.Fetch.Concurrency != 3 {
			t.Errorf("Expected fetch concurrency 3, got %d", cfg.Fetch.Concurrency)
		}
		if cfg.Fetch.Retries != 5 {
			t.Errorf("Expected default retries 5, got %d", cfg.Fetch.Retries)
		}
	})
}
