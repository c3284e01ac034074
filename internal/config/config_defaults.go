package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultBackendURL is used when neither config nor environment name an upstream host
const DefaultBackendURL = "https://www.nexuretech.in"

// DefaultJobRolesCacheControl is the caching directive for the job roles read path
const DefaultJobRolesCacheControl = "public, s-maxage=3600, stale-while-revalidate=86400"

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Backend
	v.SetDefault("backend.baseURL", "")
	v.SetDefault("backend.timeout", 120*time.Second) // Generation can take a while
	v.SetDefault("backend.userAgent", "resumewizard")
	v.SetDefault("backend.circuitBreaker.enabled", true)
	v.SetDefault("backend.circuitBreaker.maxRequests", 3)
	v.SetDefault("backend.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("backend.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("backend.circuitBreaker.minRequests", 5)
	v.SetDefault("backend.circuitBreaker.failureThreshold", 0.6)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 150*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 1024*1024) // 1MB
	v.SetDefault("server.tls.mode", "disabled")     // disabled, server
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.fileWatcher.enabled", true)
	v.SetDefault("server.tls.fileWatcher.debounceDelay", time.Second)
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.cors.enabled", true)
	v.SetDefault("server.cors.allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("server.cors.allowCredentials", true)
	v.SetDefault("server.cors.maxAge", 10*time.Minute)

	// Wizard
	v.SetDefault("wizard.editTurnLimit", 5)
	v.SetDefault("wizard.maxUploadSize", 10*1024*1024) // 10MB
	v.SetDefault("wizard.sessionTTL", 2*time.Hour)
	v.SetDefault("wizard.sweepSchedule", "@every 5m")
	v.SetDefault("wizard.progressStep", 5)
	v.SetDefault("wizard.progressInterval", 150*time.Millisecond)
	v.SetDefault("wizard.progressCap", 95)

	// Job roles
	v.SetDefault("jobRoles.fallbackFile", "")
	v.SetDefault("jobRoles.cacheControl", DefaultJobRolesCacheControl)
	v.SetDefault("jobRoles.watch.enabled", true)
	v.SetDefault("jobRoles.watch.debounceDelay", 500*time.Millisecond)

	// Auth
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.provider", "local")
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.issuer", "resumewizard")
	v.SetDefault("auth.tokenTTL", 24*time.Hour)
	v.SetDefault("auth.bcryptCost", 12)
	v.SetDefault("auth.codeTTL", 15*time.Minute)
	v.SetDefault("auth.google.clientID", "")
	v.SetDefault("auth.google.clientSecret", "")
	v.SetDefault("auth.google.redirectURL", "http://localhost:8080/api/auth/oauth/callback")

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.mount", "secret")
	v.SetDefault("vault.timeout", 10*time.Second)
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.jwtSecret", "")
	v.SetDefault("vault.secrets.googleOAuth", "")
	v.SetDefault("vault.secrets.tlsCerts", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "resumewizard")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.customMetrics.upstream.enabled", true)
	v.SetDefault("observability.customMetrics.upstream.trackDuration", true)
	v.SetDefault("observability.customMetrics.businessMetrics.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.enabled", true)
	v.SetDefault("observability.customMetrics.infrastructure.trackRateLimits", true)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
