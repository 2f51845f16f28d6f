package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// CLIConfig drives leadctl. Values come from the YAML file, then the
// environment overrides them.
type CLIConfig struct {
	APIBaseURL   string        `yaml:"api_base_url"`
	APITimeout   time.Duration `yaml:"api_timeout"`
	SessionFile  string        `yaml:"session_file"`
	VerifyPolicy string        `yaml:"verify_policy"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Debug        bool          `yaml:"debug"`
}

// DefaultCLIDir is ~/.config/route2rise, or ./.route2rise when the home
// directory is unknown.
func DefaultCLIDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".route2rise"
	}
	return filepath.Join(home, ".config", "route2rise")
}

func LoadCLI(path string) (CLIConfig, error) {
	dir := DefaultCLIDir()
	cfg := CLIConfig{
		APIBaseURL:   "http://localhost:8000",
		SessionFile:  filepath.Join(dir, "session.json"),
		VerifyPolicy: "any",
		PollInterval: 30 * time.Second,
	}

	if path == "" {
		path = filepath.Join(dir, "config.yaml")
	}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return CLIConfig{}, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return CLIConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.APIBaseURL = getEnv("API_BASE_URL", cfg.APIBaseURL)
	cfg.APITimeout = getDuration("API_TIMEOUT", cfg.APITimeout)
	cfg.SessionFile = getEnv("LEADCTL_SESSION_FILE", cfg.SessionFile)
	cfg.VerifyPolicy = getEnv("VERIFY_POLICY", cfg.VerifyPolicy)
	cfg.PollInterval = getDuration("DASHBOARD_POLL_INTERVAL", cfg.PollInterval)
	cfg.Debug = getBool("LEADCTL_DEBUG", cfg.Debug)

	return cfg, nil
}
