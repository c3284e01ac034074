package server

import (
	"context"
	"time"

	"resumewizard/internal/apiclient"
	"resumewizard/internal/auth"
	"resumewizard/internal/config"
	"resumewizard/internal/errors"
	"resumewizard/internal/jobroles"
	"resumewizard/internal/resume"
	"resumewizard/internal/wizard"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Recorder receives the request-level events the server reports
type Recorder interface {
	RecordGeneration(ctx context.Context, success bool, status int)
	RecordEditTurn(ctx context.Context, outcome string)
	RecordRateLimitHit(ctx context.Context, keyType string)
	RecordCertReload(ctx context.Context, success bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordGeneration(context.Context, bool, int) {}
func (noopRecorder) RecordEditTurn(context.Context, string) {}
func (noopRecorder) RecordRateLimitHit(context.Context, string) {}
func (noopRecorder) RecordCertReload(context.Context, bool) {}

// Dependencies are the collaborators a Server routes requests to
type Dependencies struct {
	Client   *apiclient.Client
	Resume   resume.Backend
	Roles    *jobroles.Service
	Sessions *wizard.Store
	Auth     auth.Provider
	Tokens   *auth.TokenIssuer
	Recorder Recorder
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	TLSConfig          config.TLSConfig
	CertificateManager *CertificateManager

	// API Authentication
	APIKeys     map[string]bool
	AuthEnabled bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxRequestSize int64
	MaxUploadSize  int64

	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	client   *apiclient.Client
	resume   resume.Backend
	roles    *jobroles.Service
	sessions *wizard.Store
	auth     auth.Provider
	tokens   *auth.TokenIssuer
	recorder Recorder

	Logger *errors.Logger
}

// NewServer creates a server from the application configuration
func NewServer(appCfg *config.Config, version string, deps Dependencies, logger *errors.Logger) *Server {
	if logger == nil {
		logger = errors.Discard()
	}

	// Convert API keys slice to map for O(1) lookup
	apiKeyMap := make(map[string]bool)
	for _, key := range appCfg.Server.APIKeys {
		if key != "" {
			apiKeyMap[key] = true
		}
	}

	recorder := deps.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}

	rateLimit := appCfg.Server.RateLimit
	var rateLimiter *RateLimiter
	if rateLimit.Enabled {
		rateLimiter = NewRateLimiter(rateLimit.RequestsPerMin, rateLimit.BurstCapacity, logger)
	}

	maxUpload := appCfg.Wizard.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = wizard.DefaultMaxUploadSize
	}

	return &Server{
		Host:           appCfg.Server.Host,
		Port:           appCfg.Server.Port,
		Version:        version,
		AppConfig:      appCfg,
		TLSConfig:      appCfg.Server.TLS,
		APIKeys:        apiKeyMap,
		AuthEnabled:    appCfg.Auth.Enabled,
		ReadTimeout:    appCfg.Server.ReadTimeout,
		WriteTimeout:   appCfg.Server.WriteTimeout,
		IdleTimeout:    appCfg.Server.IdleTimeout,
		MaxRequestSize: appCfg.Server.MaxRequestSize,
		MaxUploadSize:  maxUpload,
		RateLimit:      &rateLimit,
		RateLimiter:    rateLimiter,
		client:         deps.Client,
		resume:         deps.Resume,
		roles:          deps.Roles,
		sessions:       deps.Sessions,
		auth:           deps.Auth,
		tokens:         deps.Tokens,
		recorder:       recorder,
		Logger:         logger,
	}
}

// uploadLimit bounds multipart bodies: the file plus room for the form fields
func (s *Server) uploadLimit() int64 {
	return s.MaxUploadSize + max(s.MaxRequestSize, 1<<20)
}
