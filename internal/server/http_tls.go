package server

import (
	"crypto/tls"
	"fmt"
	"net/http"
)

// configureTLS sets up TLS configuration based on the mode
func (s *Server) configureTLS(httpServer *http.Server) error {
	switch s.TLSConfig.Mode {
	case "server":
		return s.configureServerTLS(httpServer)
	case "disabled", "":
		s.Logger.Info("TLS disabled, serving plain HTTP", "address", httpServer.Addr)
		return nil
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", s.TLSConfig.Mode)
	}
}

// configureServerTLS loads the certificate through the certificate manager
// so it can be replaced without a restart
func (s *Server) configureServerTLS(httpServer *http.Server) error {
	certManager := NewCertificateManager(s.TLSConfig, s.recorder, s.Logger)
	if err := certManager.Start(); err != nil {
		return fmt.Errorf("failed to start certificate manager: %w", err)
	}
	s.CertificateManager = certManager

	httpServer.TLSConfig = s.buildTLSConfig()
	s.Logger.Info("TLS enabled",
		"address", httpServer.Addr,
		"min_version", s.TLSConfig.MinVersion,
		"auto_reload", s.TLSConfig.FileWatcher.Enabled)
	return nil
}

// buildTLSConfig creates the TLS configuration
func (s *Server) buildTLSConfig() *tls.Config {
	tlsConfig := &tls.Config{
		MinVersion: tlsVersion(s.TLSConfig.MinVersion),
		ClientAuth: tls.NoClientCert,
	}
	if s.CertificateManager != nil {
		tlsConfig.GetCertificate = s.CertificateManager.GetServerCertificate
	}
	return tlsConfig
}

// tlsVersion maps a configured version, defaulting to TLS 1.2
func tlsVersion(version string) uint16 {
	switch version {
	case "1.3":
		return tls.VersionTLS13
	default:
		return tls.VersionTLS12
	}
}
