package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"
)

// LegacyBackendEnv is the variable the browser front end used to select the upstream host
const LegacyBackendEnv = "NEXT_PUBLIC_RESUME_API_HOST"

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks() {
	c.applyBackendFallbacks()
	c.applyServerAPIKeyFallbacks()
	c.applyAuthDefaults()
	c.applyTLSDefaults()
	c.applyObservabilityDefaults()
}

// applyBackendFallbacks resolves the upstream host: config, then the legacy
// front-end variable, then the built-in default
func (c *Config) applyBackendFallbacks() {
	if c.Backend.BaseURL == "" {
		if legacy := os.Getenv(LegacyBackendEnv); legacy != "" {
			c.Backend.BaseURL = legacy
		} else {
			c.Backend.BaseURL = DefaultBackendURL
		}
	}
	c.Backend.BaseURL = strings.TrimRight(c.Backend.BaseURL, "/")
}

// applyServerAPIKeyFallbacks applies API key fallbacks from environment variables
func (c *Config) applyServerAPIKeyFallbacks() {
	if len(c.Server.APIKeys) == 0 {
		if apiKeysEnv := os.Getenv("RESUMEWIZARD_SERVER_APIKEYS"); apiKeysEnv != "" {
			c.Server.APIKeys = splitAndTrim(apiKeysEnv)
		}
	}
}

// applyAuthDefaults generates a throwaway signing secret when auth is not enforced.
// Tokens signed with it do not survive a restart.
func (c *Config) applyAuthDefaults() {
	if c.Auth.JWTSecret != "" || c.Auth.Enabled {
		return
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return
	}
	c.Auth.JWTSecret = hex.EncodeToString(buf)
	log.Println("[CONFIG] No JWT secret configured, generated an ephemeral one")
}

// applyTLSDefaults applies default TLS configuration values
func (c *Config) applyTLSDefaults() {
	if c.Server.TLS.MinVersion == "" && c.Server.TLS.Mode == "server" {
		c.Server.TLS.MinVersion = "1.2"
	}
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
	if c.App.LogLevel == "debug" && !c.Observability.ConsoleOutput {
		c.Observability.ConsoleOutput = true
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"RESUMEWIZARD_BACKEND_BASEURL",
		"RESUMEWIZARD_SERVER_PORT",
		"RESUMEWIZARD_SERVER_HOST",
		"RESUMEWIZARD_SERVER_APIKEYS",
		"RESUMEWIZARD_AUTH_JWTSECRET",
		"RESUMEWIZARD_AUTH_GOOGLE_CLIENTSECRET",
		"RESUMEWIZARD_APP_LOGLEVEL",
		"RESUMEWIZARD_VAULT_ENABLED",
		LegacyBackendEnv,
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if isSensitiveEnv(envVar) {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Backend URL: %s", c.Backend.BaseURL)
	log.Printf("[CONFIG] Backend Timeout: %s", c.Backend.Timeout)
	log.Printf("[CONFIG] Server Host: %s", c.Server.Host)
	log.Printf("[CONFIG] Server Port: %s", c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] TLS Mode: %s", c.Server.TLS.Mode)
	log.Printf("[CONFIG] Auth Enabled: %t (provider: %s)", c.Auth.Enabled, c.Auth.Provider)
	log.Printf("[CONFIG] Edit Turn Limit: %d", c.Wizard.EditTurnLimit)
	log.Printf("[CONFIG] Max Upload Size: %d bytes", c.Wizard.MaxUploadSize)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}

func isSensitiveEnv(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "key") || strings.Contains(lower, "secret")
}
