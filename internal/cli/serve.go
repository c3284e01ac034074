package cli

import (
	"context"
	"fmt"
	"time"

	"resumewizard/internal/apiclient"
	"resumewizard/internal/auth"
	"resumewizard/internal/config"
	"resumewizard/internal/errors"
	"resumewizard/internal/jobroles"
	"resumewizard/internal/observability"
	"resumewizard/internal/resume"
	"resumewizard/internal/server"
	"resumewizard/internal/wizard"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the wizard HTTP service",
	Long: `Start the backend-for-frontend the resume wizard UI talks to.

Available endpoints:
- /api/proxy/generate_resume, /api/proxy/get_job_roles, /api/proxy/edit_resume:
  pass-through to the resume backend
- GET /api/job-roles: role list with fallback
- /api/wizard/sessions: server-side wizard and edit chat
- /api/auth/*: sign in, sign up, verification, password reset, OAuth
- GET /health, GET /stats

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("backend-url", "", "Resume backend base URL (overrides config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
}

// applyServeFlags copies explicitly set flags over the loaded configuration
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	overrides := map[string]*string{
		"port":        &cfg.Server.Port,
		"host":        &cfg.Server.Host,
		"backend-url": &cfg.Backend.BaseURL,
		"tls-mode":    &cfg.Server.TLS.Mode,
		"cert-file":   &cfg.Server.TLS.CertFile,
		"key-file":    &cfg.Server.TLS.KeyFile,
	}
	for name, target := range overrides {
		if !cmd.Flags().Changed(name) {
			continue
		}
		if value, err := cmd.Flags().GetString(name); err == nil {
			*target = value
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	applyServeFlags(cmd, cfg)

	// Validate TLS configuration after applying overrides
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	om, err := observability.NewManager(observability.SettingsFromConfig(cfg.Observability, Version), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := om.Shutdown(ctx); err != nil {
			logger.LogError(err, "Failed to shut down observability")
		}
	}()

	deps, stop, err := buildDependencies(cfg, om.Metrics(), logger)
	if err != nil {
		return err
	}
	defer stop()

	return server.NewServer(cfg, Version, deps, logger).Start(cmd.Context(), om)
}

// buildDependencies wires the backend client and the stores the server
// routes to. stop releases anything started here.
func buildDependencies(cfg *config.Config, metrics *observability.Metrics, logger *errors.Logger) (server.Dependencies, func(), error) {
	client := apiclient.NewFromConfig(cfg.Backend, logger, metrics, metrics.RecordBreakerTransition)
	backend := resume.NewService(client, logger)

	roles, catalog := newRolesService(cfg, backend, logger, metrics)
	stop := func() {}
	if cfg.JobRoles.Watch.Enabled && cfg.JobRoles.FallbackFile != "" {
		watcher, err := jobroles.WatchCatalog(catalog, cfg.JobRoles.FallbackFile, cfg.JobRoles.Watch.DebounceDelay, logger)
		if err != nil {
			return server.Dependencies{}, nil, fmt.Errorf("failed to watch job role catalog: %w", err)
		}
		stop = func() {
			if err := watcher.Stop(); err != nil {
				logger.LogError(err, "Failed to stop job role catalog watcher")
			}
		}
	}

	sessions := wizard.NewStore(wizard.OptionsFromConfig(cfg.Wizard), cfg.Wizard.SessionTTL, logger)
	if err := metrics.ObserveActiveSessions(sessions.Len); err != nil {
		logger.LogError(err, "Active session gauge unavailable")
	}

	deps := server.Dependencies{
		Client:   client,
		Resume:   backend,
		Roles:    roles,
		Sessions: sessions,
		Recorder: metrics,
	}

	provider, tokens := auth.NewFromConfig(cfg.Auth, logger)
	deps.Tokens = tokens
	// a nil *LocalProvider must not become a non-nil interface
	if provider != nil {
		deps.Auth = provider
	}

	return deps, stop, nil
}
