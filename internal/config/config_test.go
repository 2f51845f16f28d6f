package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"APP_ENV", "HTTP_ADDR", "API_BASE_URL", "API_TIMEOUT", "VERIFY_POLICY",
	"STORAGE_BACKEND", "DATABASE_URL", "REDIS_ADDR", "REDIS_DB", "STORAGE_TTL",
	"CORS_ORIGINS", "COOKIE_SECURE", "SHELL_IDLE_TIMEOUT", "DASHBOARD_POLL_INTERVAL", "LOGIN_RATE_LIMIT", "TRUST_PROXY_HEADERS",
	"TELEMETRY_ENDPOINT", "TELEMETRY_INSECURE",
	"MAIL_HOST", "MAIL_PORT", "REMINDER_USERNAME", "REMINDER_PASSWORD",
	"REMINDER_RECIPIENT", "REMINDER_LOOKAHEAD",
	"LEADCTL_SESSION_FILE", "LEADCTL_DEBUG",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Zero(t, cfg.APITimeout, "no timeout unless configured")
	assert.Equal(t, "any", cfg.VerifyPolicy)
	assert.Equal(t, "memory", cfg.StorageBackend)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.CORSOrigins)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, 587, cfg.MailPort)
	assert.Equal(t, 10, cfg.LoginRateLimit)
	assert.False(t, cfg.TrustProxy)
	assert.Empty(t, cfg.TelemetryEndpoint)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_BASE_URL", "https://crm.example.com")
	t.Setenv("API_TIMEOUT", "5s")
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("COOKIE_SECURE", "yes")
	t.Setenv("DASHBOARD_POLL_INTERVAL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://crm.example.com", cfg.APIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.APITimeout)
	assert.Equal(t, "redis", cfg.StorageBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, 30*time.Second, cfg.PollInterval, "bad values fall back to the default")
}

func TestLoadValidatesStorageBackend(t *testing.T) {
	clearEnv(t)

	t.Setenv("STORAGE_BACKEND", "postgres")
	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://localhost/crm")
	_, err = Load()
	assert.NoError(t, err)

	t.Setenv("STORAGE_BACKEND", "etcd")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown STORAGE_BACKEND")
}

func TestValidateReminders(t *testing.T) {
	cfg := Config{}
	assert.ErrorContains(t, cfg.ValidateReminders(), "REMINDER_USERNAME")

	cfg.ReminderUsername, cfg.ReminderPassword = "a", "b"
	assert.ErrorContains(t, cfg.ValidateReminders(), "REMINDER_RECIPIENT")

	cfg.ReminderRecipient = "founders@example.com"
	assert.ErrorContains(t, cfg.ValidateReminders(), "MAIL_HOST")

	cfg.MailHost = "smtp.example.com"
	assert.NoError(t, cfg.ValidateReminders())
}

func TestLoadCLI(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	t.Run("missing file keeps defaults", func(t *testing.T) {
		cfg, err := LoadCLI(filepath.Join(dir, "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
		assert.Equal(t, "session.json", filepath.Base(cfg.SessionFile))
		assert.Equal(t, 30*time.Second, cfg.PollInterval)
	})

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_base_url: https://crm.example.com
api_timeout: 10s
session_file: /tmp/r2r-session.json
verify_policy: rejection
poll_interval: 1m
`), 0o600))

	t.Run("yaml values", func(t *testing.T) {
		cfg, err := LoadCLI(path)
		require.NoError(t, err)
		assert.Equal(t, "https://crm.example.com", cfg.APIBaseURL)
		assert.Equal(t, 10*time.Second, cfg.APITimeout)
		assert.Equal(t, "/tmp/r2r-session.json", cfg.SessionFile)
		assert.Equal(t, "rejection", cfg.VerifyPolicy)
		assert.Equal(t, time.Minute, cfg.PollInterval)
		assert.False(t, cfg.Debug)
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv("LEADCTL_SESSION_FILE", "/var/tmp/other.json")
		t.Setenv("LEADCTL_DEBUG", "1")

		cfg, err := LoadCLI(path)
		require.NoError(t, err)
		assert.Equal(t, "/var/tmp/other.json", cfg.SessionFile)
		assert.True(t, cfg.Debug)
		assert.Equal(t, "https://crm.example.com", cfg.APIBaseURL)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(bad, []byte("api_timeout: [1, 2"), 0o600))
		_, err := LoadCLI(bad)
		assert.Error(t, err)
	})
}
