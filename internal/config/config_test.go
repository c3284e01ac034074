package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(LegacyBackendEnv, "")
	path := writeConfigFile(t, "app:\n  logLevel: info\n")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultBackendURL, cfg.Backend.BaseURL)
	assert.Equal(t, 5, cfg.Wizard.EditTurnLimit)
	assert.Equal(t, int64(10*1024*1024), cfg.Wizard.MaxUploadSize)
	assert.Equal(t, 150*time.Millisecond, cfg.Wizard.ProgressInterval)
	assert.Equal(t, DefaultJobRolesCacheControl, cfg.JobRoles.CacheControl)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.NotEmpty(t, cfg.Auth.JWTSecret, "an ephemeral secret is generated when auth is off")
}

func TestLoadConfigLegacyBackendEnv(t *testing.T) {
	t.Setenv(LegacyBackendEnv, "https://api.example.com/")
	path := writeConfigFile(t, "app:\n  logLevel: debug\n")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Backend.BaseURL)
	assert.True(t, cfg.Observability.ConsoleOutput)
}

func TestLoadConfigFileOverridesLegacyEnv(t *testing.T) {
	t.Setenv(LegacyBackendEnv, "https://legacy.example.com")
	path := writeConfigFile(t, `
backend:
  baseURL: https://configured.example.com
wizard:
  editTurnLimit: 3
`)

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://configured.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 3, cfg.Wizard.EditTurnLimit)
}

func TestLoadConfigEnvPrefix(t *testing.T) {
	t.Setenv("RESUMEWIZARD_SERVER_PORT", "9999")
	path := writeConfigFile(t, "{}\n")

	cfg, err := LoadConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfigFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel:         "info",
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text", "markdown"},
		},
		Server:  ServerConfig{Port: "8080", TLS: TLSConfig{Mode: "disabled"}},
		Backend: BackendConfig{BaseURL: DefaultBackendURL, Timeout: time.Minute},
		Wizard: WizardConfig{
			EditTurnLimit: 5,
			MaxUploadSize: 10 << 20,
			SessionTTL:    time.Hour,
		},
		Auth: AuthConfig{Provider: "local", JWTSecret: "secret"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad log level", mutate: func(c *Config) { c.App.LogLevel = "trace" }, errorMsg: "invalid log level"},
		{name: "missing port", mutate: func(c *Config) { c.Server.Port = "" }, errorMsg: "server port is required"},
		{name: "relative backend", mutate: func(c *Config) { c.Backend.BaseURL = "/api" }, errorMsg: "invalid backend base URL"},
		{name: "zero timeout", mutate: func(c *Config) { c.Backend.Timeout = 0 }, errorMsg: "backend timeout"},
		{name: "zero turn limit", mutate: func(c *Config) { c.Wizard.EditTurnLimit = 0 }, errorMsg: "turn limit"},
		{name: "zero upload size", mutate: func(c *Config) { c.Wizard.MaxUploadSize = 0 }, errorMsg: "upload size"},
		{name: "unknown format", mutate: func(c *Config) { c.App.DefaultFormat = "yaml" }, errorMsg: "invalid default format"},
		{name: "unknown provider", mutate: func(c *Config) { c.Auth.Provider = "okta" }, errorMsg: "invalid auth provider"},
		{
			name: "enforced auth without secret",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.JWTSecret = ""
			},
			errorMsg: "JWT secret is required",
		},
		{
			name: "breaker threshold out of range",
			mutate: func(c *Config) {
				c.Backend.CircuitBreaker = CircuitBreakerConfig{Enabled: true, FailureThreshold: 1.5}
			},
			errorMsg: "failure threshold",
		},
		{
			name: "rate limit without budget",
			mutate: func(c *Config) {
				c.Server.RateLimit = RateLimitConfig{Enabled: true}
			},
			errorMsg: "rate limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestSplitAndTrim(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitAndTrim(" a , ,b "))
	assert.Empty(t, splitAndTrim(""))
}
