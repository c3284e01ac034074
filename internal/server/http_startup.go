package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"resumewizard/internal/observability"
)

// shutdownTimeout bounds the graceful shutdown of every listener
const shutdownTimeout = 30 * time.Second

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, om *observability.Manager) error {
	httpServer := s.setupHTTPServer(om)

	if err := s.configureTLS(httpServer); err != nil {
		return err
	}

	if s.sessions != nil {
		if err := s.sessions.StartSweeper(s.AppConfig.Wizard.SweepSchedule); err != nil {
			return err
		}
	}

	var metricsServer *http.Server
	if om != nil {
		metricsServer = om.PrometheusServer()
	}

	s.displayServerInfo()

	return s.startWithGracefulShutdown(ctx, httpServer, metricsServer)
}

// setupHTTPServer creates the HTTP server with tracing around the routed handler
func (s *Server) setupHTTPServer(om *observability.Manager) *http.Server {
	handler := s.Handler()
	if om != nil {
		handler = om.HTTPMiddleware()(handler)
	}

	return &http.Server{
		Addr:              net.JoinHostPort(s.Host, s.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.ReadTimeout,
		WriteTimeout:      s.WriteTimeout,
		IdleTimeout:       s.IdleTimeout,
	}
}

// startWithGracefulShutdown runs the listeners and stops them when ctx ends
func (s *Server) startWithGracefulShutdown(ctx context.Context, server, metricsServer *http.Server) error {
	serverErrors := make(chan error, 2)

	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", server.Addr,
			"tls_enabled", server.TLSConfig != nil)

		var err error
		if server.TLSConfig != nil {
			// Certificates come from the TLS config's GetCertificate
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	if metricsServer != nil {
		go func() {
			s.Logger.Info("Starting Prometheus metrics server", "address", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				serverErrors <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case err := <-serverErrors:
		s.cleanup(context.Background())
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		s.Logger.Info("Shutdown requested, starting graceful shutdown")
		return s.performGracefulShutdown(server, metricsServer)
	}
}

// performGracefulShutdown drains in-flight requests before stopping
func (s *Server) performGracefulShutdown(server, metricsServer *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.Logger.Info("Shutting down HTTP server...")
	var shutdownErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		shutdownErr = server.Close()
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			s.Logger.LogError(err, "Failed to shutdown metrics server")
		}
	}

	s.cleanup(shutdownCtx)

	if shutdownErr == nil {
		s.Logger.Info("Server shutdown completed successfully")
	}
	return shutdownErr
}

// cleanup stops background work owned by the server
func (s *Server) cleanup(ctx context.Context) {
	if s.CertificateManager != nil {
		if err := s.CertificateManager.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop certificate manager")
		}
	}
	if s.sessions != nil {
		s.sessions.Stop(ctx)
	}
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
