package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFrom(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `{
			"base_url": "http://backend:9000",
			"top_k": 3,
			"include_sources": false,
			"history_dir": "/var/lib/docchat"
		}`)

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.BaseURL != "http://backend:9000" {
			t.Errorf("BaseURL = %q", cfg.BaseURL)
		}
		if cfg.TopK != 3 {
			t.Errorf("TopK = %d, want 3", cfg.TopK)
		}
		if *cfg.IncludeSources {
			t.Error("IncludeSources = true, want false")
		}
		if cfg.HistoryDir != "/var/lib/docchat" {
			t.Errorf("HistoryDir = %q", cfg.HistoryDir)
		}
	})

	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.BaseURL != "http://localhost:8000" {
			t.Errorf("BaseURL = %q", cfg.BaseURL)
		}
		if cfg.TopK != 5 {
			t.Errorf("TopK = %d, want 5", cfg.TopK)
		}
		if !*cfg.IncludeSources {
			t.Error("IncludeSources = false, want true by default")
		}
		if cfg.HistoryDir == "" {
			t.Error("HistoryDir empty, want home default")
		}
	})

	t.Run("env overrides file", func(t *testing.T) {
		path := writeConfig(t, `{"base_url": "http://from-file", "top_k": 3}`)
		t.Setenv("DOCCHAT_BASE_URL", "http://from-env")
		t.Setenv("DOCCHAT_TOP_K", "7")

		cfg, err := LoadFrom(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.BaseURL != "http://from-env" {
			t.Errorf("BaseURL = %q, want env value", cfg.BaseURL)
		}
		if cfg.TopK != 7 {
			t.Errorf("TopK = %d, want 7", cfg.TopK)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeConfig(t, `{not json`)
		_, err := LoadFrom(path)
		if !errors.Is(err, ErrInvalidJSON) {
			t.Errorf("err = %v, want ErrInvalidJSON", err)
		}
	})

	t.Run("invalid top_k env", func(t *testing.T) {
		path := writeConfig(t, `{}`)
		t.Setenv("DOCCHAT_TOP_K", "zero")
		_, err := LoadFrom(path)
		if !errors.Is(err, ErrInvalidTopK) {
			t.Errorf("err = %v, want ErrInvalidTopK", err)
		}
	})

	t.Run("negative top_k in file", func(t *testing.T) {
		path := writeConfig(t, `{"top_k": -1}`)
		_, err := LoadFrom(path)
		if !errors.Is(err, ErrInvalidTopK) {
			t.Errorf("err = %v, want ErrInvalidTopK", err)
		}
	})
}
