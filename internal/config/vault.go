package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"resumewizard/internal/errors"

	"github.com/hashicorp/vault/api"
)

// VaultConfig holds Vault connection configuration
type VaultConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Address   string        `mapstructure:"address"`
	Token     string        `mapstructure:"token"`
	TokenFile string        `mapstructure:"tokenFile"`
	Namespace string        `mapstructure:"namespace"`
	Mount     string        `mapstructure:"mount"` // KV v2 mount path
	Timeout   time.Duration `mapstructure:"timeout"`

	Secrets VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets are secret paths under the KV v2 mount. An empty path is
// not read.
type VaultSecrets struct {
	APIKeys     string `mapstructure:"apiKeys"`     // key "keys": comma-separated
	JWTSecret   string `mapstructure:"jwtSecret"`   // key "secret"
	GoogleOAuth string `mapstructure:"googleOAuth"` // keys "client_id", "client_secret"
	TLSCerts    string `mapstructure:"tlsCerts"`    // keys "cert", "key" (PEM content)
}

// VaultSecret is one version of a KV v2 secret
type VaultSecret struct {
	Path    string
	Data    map[string]any
	Version int
}

// String returns a string value; a missing key is an error
func (s *VaultSecret) String(key string) (string, error) {
	raw, ok := s.Data[key]
	if !ok {
		return "", fmt.Errorf("key '%s' not found in secret %s", key, s.Path)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value for key '%s' is not a string in secret %s", key, s.Path)
	}
	return value, nil
}

// OptionalString returns a string value or "" when absent or not a string
func (s *VaultSecret) OptionalString(key string) string {
	value, _ := s.Data[key].(string)
	return value
}

// VaultClient reads secrets from a KV v2 engine
type VaultClient struct {
	kv     *api.KVv2
	logger *errors.Logger
}

// NewVaultClient connects to Vault and checks that it is reachable
func NewVaultClient(ctx context.Context, cfg VaultConfig, logger *errors.Logger) (*VaultClient, error) {
	if logger == nil {
		logger = errors.Discard()
	}

	apiConfig := api.DefaultConfig()
	if cfg.Address != "" {
		apiConfig.Address = cfg.Address
	}
	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	token, err := resolveVaultToken(cfg)
	if err != nil {
		return nil, err
	}
	client.SetToken(token)

	health, err := client.Sys().HealthWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vault at %s: %w", apiConfig.Address, err)
	}
	if health.Sealed {
		return nil, fmt.Errorf("vault at %s is sealed", apiConfig.Address)
	}
	logger.Info("Connected to Vault", "address", apiConfig.Address, "version", health.Version)

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}
	return &VaultClient{kv: client.KVv2(mount), logger: logger}, nil
}

// resolveVaultToken takes the configured token, else the token file
func resolveVaultToken(cfg VaultConfig) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		data, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token file: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return "", fmt.Errorf("vault token is required when vault is enabled")
	}
	return token, nil
}

// Read fetches the latest version of a secret
func (vc *VaultClient) Read(ctx context.Context, path string) (*VaultSecret, error) {
	secret, err := vc.kv.Get(ctx, path)
	if err != nil {
		if stderrors.Is(err, api.ErrSecretNotFound) {
			return nil, fmt.Errorf("secret not found at path: %s", path)
		}
		return nil, fmt.Errorf("failed to read secret from %s: %w", path, err)
	}

	result := &VaultSecret{Path: path, Data: secret.Data}
	if secret.VersionMetadata != nil {
		result.Version = secret.VersionMetadata.Version
	}
	vc.logger.Debug("Read secret from Vault", "path", path, "version", result.Version, "keys", len(result.Data))
	return result, nil
}

// secretBinding copies one Vault secret into the configuration
type secretBinding struct {
	name  string
	path  string
	apply func(cfg *Config, secret *VaultSecret) error
}

func secretBindings(paths VaultSecrets) []secretBinding {
	return []secretBinding{
		{name: "api keys", path: paths.APIKeys, apply: applyAPIKeysSecret},
		{name: "jwt secret", path: paths.JWTSecret, apply: applyJWTSecret},
		{name: "google oauth", path: paths.GoogleOAuth, apply: applyGoogleOAuthSecret},
		{name: "tls certificates", path: paths.TLSCerts, apply: applyTLSSecret},
	}
}

// ApplyVaultSecrets overrides configuration with secrets from Vault. It
// does nothing when Vault is disabled.
func ApplyVaultSecrets(cfg *Config, logger *errors.Logger) error {
	if !cfg.Vault.Enabled {
		return nil
	}
	if logger == nil {
		logger = errors.Discard()
	}

	timeout := cfg.Vault.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := NewVaultClient(ctx, cfg.Vault, logger)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "Vault unavailable", err)
	}
	return applySecrets(ctx, client, cfg, logger)
}

func applySecrets(ctx context.Context, client *VaultClient, cfg *Config, logger *errors.Logger) error {
	applied := 0
	for _, binding := range secretBindings(cfg.Vault.Secrets) {
		if binding.path == "" {
			continue
		}
		secret, err := client.Read(ctx, binding.path)
		if err != nil {
			return fmt.Errorf("failed to load %s from vault: %w", binding.name, err)
		}
		if err := binding.apply(cfg, secret); err != nil {
			return fmt.Errorf("failed to apply %s from vault: %w", binding.name, err)
		}
		logger.Info("Secret applied from Vault", "secret", binding.name, "version", secret.Version)
		applied++
	}

	log.Printf("[CONFIG] Applied %d secret(s) from Vault", applied)
	return nil
}

func applyAPIKeysSecret(cfg *Config, secret *VaultSecret) error {
	raw, err := secret.String("keys")
	if err != nil {
		return err
	}
	if keys := splitAndTrim(raw); len(keys) > 0 {
		cfg.Server.APIKeys = keys
	}
	return nil
}

func applyJWTSecret(cfg *Config, secret *VaultSecret) error {
	value, err := secret.String("secret")
	if err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("empty jwt secret in %s", secret.Path)
	}
	cfg.Auth.JWTSecret = value
	return nil
}

// applyGoogleOAuthSecret fills the client secret and, unless configured, the client ID
func applyGoogleOAuthSecret(cfg *Config, secret *VaultSecret) error {
	if id := secret.OptionalString("client_id"); id != "" && cfg.Auth.Google.ClientID == "" {
		cfg.Auth.Google.ClientID = id
	}
	if value := secret.OptionalString("client_secret"); value != "" {
		cfg.Auth.Google.ClientSecret = value
	}
	return nil
}

// applyTLSSecret loads PEM content. File paths are not accepted from Vault.
func applyTLSSecret(cfg *Config, secret *VaultSecret) error {
	for _, field := range []string{"cert_file", "key_file"} {
		if _, ok := secret.Data[field]; ok {
			return fmt.Errorf("'%s' is not supported in %s, store PEM content under '%s'",
				field, secret.Path, strings.TrimSuffix(field, "_file"))
		}
	}
	if cert := secret.OptionalString("cert"); cert != "" {
		cfg.Server.TLS.CertContent = cert
		cfg.Server.TLS.CertFile = ""
	}
	if key := secret.OptionalString("key"); key != "" {
		cfg.Server.TLS.KeyContent = key
		cfg.Server.TLS.KeyFile = ""
	}
	return nil
}
