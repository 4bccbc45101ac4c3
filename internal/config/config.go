package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	ErrNoConfig    = errors.New("config file not found")
	ErrInvalidJSON = errors.New("invalid config JSON")
	ErrInvalidTopK = errors.New("top_k must be positive")
)

// Config holds the global docchat configuration.
type Config struct {
	BaseURL        string `json:"base_url"`        // Backend address
	TopK           int    `json:"top_k"`           // Retrieval depth per question
	IncludeSources *bool  `json:"include_sources"` // Attach source references to answers (default: true)
	HistoryDir     string `json:"history_dir"`     // Where finished transcripts are saved (default: ~/.docchat)
}

// Load reads the config from ~/.config/docchat/config.json, after loading
// a .env file from the working directory if one exists. Environment
// variables override file values. A missing config file yields defaults.
func Load() (*Config, error) {
	// Missing .env is fine; only a present-but-broken one matters, and
	// godotenv treats absence as an error we can ignore.
	_ = godotenv.Load()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ".config", "docchat", "config.json")
	return LoadFrom(configPath)
}

// LoadFrom reads the config from a specific path, then applies env
// overrides and defaults.
func LoadFrom(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, ErrInvalidJSON
		}
	case os.IsNotExist(err):
		// Defaults plus env are enough to run against a local backend.
	default:
		return nil, err
	}

	if v := os.Getenv("DOCCHAT_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("DOCCHAT_TOP_K"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, ErrInvalidTopK
		}
		cfg.TopK = n
	}
	if v := os.Getenv("DOCCHAT_HISTORY_DIR"); v != "" {
		cfg.HistoryDir = v
	}

	// Set defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.TopK == 0 {
		cfg.TopK = 5
	}
	if cfg.TopK < 0 {
		return nil, ErrInvalidTopK
	}
	if cfg.IncludeSources == nil {
		t := true
		cfg.IncludeSources = &t
	}
	if cfg.HistoryDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		cfg.HistoryDir = filepath.Join(home, ".docchat")
	}

	return &cfg, nil
}
