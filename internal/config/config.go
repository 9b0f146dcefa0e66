package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort           = 8080
	defaultBaseURL        = "http://localhost:8000"
	defaultDataDir        = "data"
	defaultStatusInterval = 1500 * time.Millisecond
	defaultLogsInterval   = 2 * time.Second
)

// Config describes runtime configuration for the companion service.
type Config struct {
	Port             int    `yaml:"port"`
	BaseURL          string `yaml:"base_url"`
	DataDir          string `yaml:"data_dir"`
	StatusIntervalMS int    `yaml:"status_interval_ms"`
	LogsIntervalMS   int    `yaml:"logs_interval_ms"`
}

// Default returns sane defaults for a locally running generation backend.
func Default() Config {
	return Config{
		Port:             defaultPort,
		BaseURL:          defaultBaseURL,
		DataDir:          defaultDataDir,
		StatusIntervalMS: int(defaultStatusInterval / time.Millisecond),
		LogsIntervalMS:   int(defaultLogsInterval / time.Millisecond),
	}
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	// basic normalization
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.StatusIntervalMS == 0 {
		cfg.StatusIntervalMS = int(defaultStatusInterval / time.Millisecond)
	}
	if cfg.LogsIntervalMS == 0 {
		cfg.LogsIntervalMS = int(defaultLogsInterval / time.Millisecond)
	}
	// validate intervals explicitly: negative cadences are not allowed
	if cfg.StatusIntervalMS < 1 {
		return cfg, fmt.Errorf("invalid status_interval_ms: %d (must be >= 1)", cfg.StatusIntervalMS)
	}
	if cfg.LogsIntervalMS < 1 {
		return cfg, fmt.Errorf("invalid logs_interval_ms: %d (must be >= 1)", cfg.LogsIntervalMS)
	}
	return cfg, nil
}

// StatusInterval returns the status poll cadence as a duration.
func (c Config) StatusInterval() time.Duration {
	return time.Duration(c.StatusIntervalMS) * time.Millisecond
}

// LogsInterval returns the log poll cadence as a duration.
func (c Config) LogsInterval() time.Duration {
	return time.Duration(c.LogsIntervalMS) * time.Millisecond
}
