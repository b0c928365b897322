package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inTempDir keeps godotenv from picking up a developer's .env.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/api", cfg.API.BaseURL)
	assert.Equal(t, 3, cfg.API.MaxAttempts)
	assert.Equal(t, 15*time.Second, cfg.API.RequestTimeout)
	assert.Equal(t, "keyring", cfg.Credential.Backend)
	assert.Equal(t, 60*time.Second, cfg.Trigger.MinGap)
	assert.Equal(t, 20, cfg.Trigger.MaxPerSession)
	assert.False(t, cfg.Session.ImmediateBypassesGuard)
	assert.True(t, cfg.Session.CheckDuplicates)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromEnvironment(t *testing.T) {
	inTempDir(t)
	t.Setenv("TAGLIFT_API_BASE", "https://crm.example.com/api")
	t.Setenv("TAGLIFT_MAX_ATTEMPTS", "5")
	t.Setenv("TAGLIFT_CREDENTIAL_BACKEND", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("TAGLIFT_SESSION_TTL_MINUTES", "30")
	t.Setenv("TAGLIFT_IMMEDIATE_BYPASSES_GUARD", "true")
	t.Setenv("TAGLIFT_HEADLESS", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://crm.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5, cfg.API.MaxAttempts)
	assert.Equal(t, "redis", cfg.Credential.Backend)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.True(t, cfg.Session.ImmediateBypassesGuard)
	assert.False(t, cfg.Browser.Headless)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TAGLIFT_LISTEN_ADDR=0.0.0.0:9000\n"), 0o644))
	// godotenv never overrides a variable that is already set.
	t.Setenv("TAGLIFT_LISTEN_ADDR", "")
	require.NoError(t, os.Unsetenv("TAGLIFT_LISTEN_ADDR"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
}

func TestValidate(t *testing.T) {
	inTempDir(t)
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base", func(c *Config) { c.API.BaseURL = "" }},
		{"non-http base", func(c *Config) { c.API.BaseURL = "ftp://x" }},
		{"zero attempts", func(c *Config) { c.API.MaxAttempts = 0 }},
		{"unknown backend", func(c *Config) { c.Credential.Backend = "vault" }},
		{"redis without host", func(c *Config) { c.Credential.Backend = "redis"; c.Redis.Host = "" }},
		{"bad pattern", func(c *Config) { c.Trigger.ProfilePattern = "(" }},
		{"zero triggers", func(c *Config) { c.Trigger.MaxPerSession = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
