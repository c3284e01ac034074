package config

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"resumewizard/internal/errors"

	"github.com/spf13/viper"
)

// Config holds all application configuration
// Secret precedence order:
// 1. Vault (if configured) - Highest priority
// 2. Environment Variables (RESUMEWIZARD_AUTH_JWTSECRET, etc.)
// 3. Config File values
// 4. Default values - Lowest priority
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Backend       BackendConfig       `mapstructure:"backend"`
	Wizard        WizardConfig        `mapstructure:"wizard"`
	JobRoles      JobRolesConfig      `mapstructure:"jobRoles"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// BackendConfig describes the external resume service
type BackendConfig struct {
	BaseURL        string               `mapstructure:"baseURL"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	UserAgent      string               `mapstructure:"userAgent"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	// MaxRequestSize caps JSON request bodies; uploads use Wizard.MaxUploadSize
	MaxRequestSize int64 `mapstructure:"maxRequestSize"`

	TLS TLSConfig `mapstructure:"tls"`

	APIKeys []string `mapstructure:"apiKeys"` // Valid API keys for service-to-service access

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// TLSConfig holds TLS configuration for the HTTP server
type TLSConfig struct {
	Mode     string `mapstructure:"mode"`     // TLS mode: "disabled", "server"
	CertFile string `mapstructure:"certFile"` // Server certificate file (PEM)
	KeyFile  string `mapstructure:"keyFile"`  // Server private key file (PEM)

	CertContent string `mapstructure:"certContent"` // Server certificate content (PEM)
	KeyContent  string `mapstructure:"keyContent"`  // Server private key content (PEM)

	MinVersion string `mapstructure:"minVersion"` // Minimum TLS version: "1.2", "1.3"

	FileWatcher FileWatcherConfig `mapstructure:"fileWatcher"`
}

// FileWatcherConfig configures fsnotify based reloads
type FileWatcherConfig struct {
	Enabled       bool          `mapstructure:"enabled"`       // Enable file watching
	DebounceDelay time.Duration `mapstructure:"debounceDelay"` // Debounce delay for file change events
}

// RateLimitConfig holds per-client token bucket settings
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int  `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int  `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
	ByIP           bool `mapstructure:"byIP"`           // Enable per-IP rate limiting
	ByAPIKey       bool `mapstructure:"byAPIKey"`       // Enable per-API-key rate limiting
}

// CORSConfig controls cross-origin access for the browser front end
type CORSConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	AllowedOrigins   []string      `mapstructure:"allowedOrigins"`
	AllowCredentials bool          `mapstructure:"allowCredentials"`
	MaxAge           time.Duration `mapstructure:"maxAge"`
}

// WizardConfig holds limits for the resume wizard and edit chat
type WizardConfig struct {
	EditTurnLimit    int           `mapstructure:"editTurnLimit"`
	MaxUploadSize    int64         `mapstructure:"maxUploadSize"`
	SessionTTL       time.Duration `mapstructure:"sessionTTL"`
	SweepSchedule    string        `mapstructure:"sweepSchedule"`
	ProgressStep     int           `mapstructure:"progressStep"`
	ProgressInterval time.Duration `mapstructure:"progressInterval"`
	ProgressCap      int           `mapstructure:"progressCap"`
}

// JobRolesConfig configures the job role cache and fallback catalog
type JobRolesConfig struct {
	FallbackFile string            `mapstructure:"fallbackFile"`
	CacheControl string            `mapstructure:"cacheControl"`
	Watch        FileWatcherConfig `mapstructure:"watch"`
}

// AuthConfig configures the identity provider
type AuthConfig struct {
	Enabled    bool              `mapstructure:"enabled"` // Require a signed-in user on wizard routes
	Provider   string            `mapstructure:"provider"`
	JWTSecret  string            `mapstructure:"jwtSecret"`
	Issuer     string            `mapstructure:"issuer"`
	TokenTTL   time.Duration     `mapstructure:"tokenTTL"`
	BcryptCost int               `mapstructure:"bcryptCost"`
	CodeTTL    time.Duration     `mapstructure:"codeTTL"`
	Google     GoogleOAuthConfig `mapstructure:"google"`
}

// GoogleOAuthConfig holds Google OAuth client settings
type GoogleOAuthConfig struct {
	ClientID     string `mapstructure:"clientID"`
	ClientSecret string `mapstructure:"clientSecret"`
	RedirectURL  string `mapstructure:"redirectURL"`
}

// AppConfig holds general application settings
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
}

// ObservabilityConfig holds OpenTelemetry settings
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
}

type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

type ConsoleConfig struct {
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

type CustomMetricsConfig struct {
	Upstream        UpstreamMetricsConfig       `mapstructure:"upstream"`
	BusinessMetrics BusinessMetricsConfig       `mapstructure:"businessMetrics"`
	Infrastructure  InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

type UpstreamMetricsConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	TrackDuration bool `mapstructure:"trackDuration"`
}

type BusinessMetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
}

type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfigFrom loads configuration, reading an explicit file when path is set
func LoadConfigFrom(path string) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := viper.New()

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix("RESUMEWIZARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Configured environment variable handling with prefix 'RESUMEWIZARD'")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/resumewizard/")
		v.AddConfigPath("$HOME/.resumewizard")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		log.Println("[CONFIG] Configured config file search paths: /etc/resumewizard/, $HOME/.resumewizard, ./config, .")
	}

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")

	config.applyFallbacks()
	log.Println("[CONFIG] Applied configuration fallbacks and environment variable overrides")

	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if _, err := errors.ParseLevel(c.App.LogLevel); err != nil {
		return err
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Auth.Provider {
	case "local", "none":
	default:
		return fmt.Errorf("invalid auth provider: %s (must be 'local' or 'none')", c.Auth.Provider)
	}

	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend base URL is required")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend base URL: %s", c.Backend.BaseURL)
	}

	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend timeout must be positive")
	}

	if c.Backend.CircuitBreaker.Enabled {
		if c.Backend.CircuitBreaker.FailureThreshold <= 0 || c.Backend.CircuitBreaker.FailureThreshold > 1 {
			return fmt.Errorf("circuit breaker failure threshold must be in (0, 1]")
		}
	}

	if c.Wizard.EditTurnLimit <= 0 {
		return fmt.Errorf("wizard edit turn limit must be positive")
	}
	if c.Wizard.MaxUploadSize <= 0 {
		return fmt.Errorf("wizard max upload size must be positive")
	}
	if c.Wizard.SessionTTL <= 0 {
		return fmt.Errorf("wizard session TTL must be positive")
	}

	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RequestsPerMin <= 0 || c.Server.RateLimit.BurstCapacity <= 0) {
		return fmt.Errorf("rate limit requestsPerMin and burstCapacity must be positive")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if c.Auth.Enabled && c.Auth.Provider == "local" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth JWT secret is required for the local provider (set RESUMEWIZARD_AUTH_JWTSECRET)")
	}

	if err := c.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	return nil
}
