package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"resumewizard/internal/config"
	"resumewizard/internal/errors"
	"resumewizard/internal/watch"
)

// CertificateManager serves the current server certificate and reloads it
// when the files on disk change
type CertificateManager struct {
	mu sync.RWMutex

	serverCert       *tls.Certificate
	serverCertExpiry time.Time
	lastReloadTime   time.Time

	fileWatcher *watch.FileWatcher

	config   config.TLSConfig
	recorder Recorder
	logger   *errors.Logger

	reloadCount        int64
	reloadSuccessCount int64
	reloadFailureCount int64
	lastReloadSuccess  bool
	lastReloadError    string
}

// CertificateMetrics holds metrics about certificate operations
type CertificateMetrics struct {
	ReloadCount        int64     `json:"reload_count"`
	ReloadSuccessCount int64     `json:"reload_success_count"`
	ReloadFailureCount int64     `json:"reload_failure_count"`
	LastReloadTime     time.Time `json:"last_reload_time"`
	LastReloadSuccess  bool      `json:"last_reload_success"`
	LastReloadError    string    `json:"last_reload_error,omitempty"`
}

// NewCertificateManager creates a certificate manager
func NewCertificateManager(cfg config.TLSConfig, recorder Recorder, logger *errors.Logger) *CertificateManager {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	if logger == nil {
		logger = errors.Discard()
	}
	return &CertificateManager{config: cfg, recorder: recorder, logger: logger}
}

// Start loads the certificate and, for file-based certificates, starts
// watching the files
func (cm *CertificateManager) Start() error {
	if err := cm.ReloadCertificates(); err != nil {
		return fmt.Errorf("failed to load initial certificates: %w", err)
	}

	if !cm.config.FileWatcher.Enabled || cm.config.CertContent != "" || cm.config.CertFile == "" {
		return nil
	}

	watcher := watch.New("tls", []string{cm.config.CertFile, cm.config.KeyFile},
		cm.config.FileWatcher.DebounceDelay, cm.triggerReload, cm.logger)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start certificate watcher: %w", err)
	}
	cm.fileWatcher = watcher
	return nil
}

// Stop stops the file watcher
func (cm *CertificateManager) Stop() error {
	if cm.fileWatcher != nil {
		if err := cm.fileWatcher.Stop(); err != nil {
			cm.logger.LogError(err, "Failed to stop certificate watcher")
			return err
		}
	}
	cm.logger.Info("Certificate manager stopped")
	return nil
}

// GetServerCertificate returns the current server certificate for TLS handshakes
func (cm *CertificateManager) GetServerCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.serverCert == nil {
		return nil, fmt.Errorf("no server certificate available")
	}
	if !cm.serverCertExpiry.IsZero() && time.Now().After(cm.serverCertExpiry) {
		cm.logger.LogError(fmt.Errorf("server certificate expired"), "Server certificate expired",
			"expiry", cm.serverCertExpiry,
			"server_name", hello.ServerName)
		return nil, fmt.Errorf("server certificate expired")
	}
	return cm.serverCert, nil
}

// ReloadCertificates loads the key pair and swaps it in. On failure the
// previous certificate keeps serving.
func (cm *CertificateManager) ReloadCertificates() error {
	cert, expiry, err := cm.loadCertificatePair()

	cm.mu.Lock()
	cm.reloadCount++
	if err != nil {
		cm.reloadFailureCount++
		cm.lastReloadSuccess = false
		cm.lastReloadError = err.Error()
	} else {
		cm.serverCert = &cert
		cm.serverCertExpiry = expiry
		cm.lastReloadTime = time.Now()
		cm.reloadSuccessCount++
		cm.lastReloadSuccess = true
		cm.lastReloadError = ""
	}
	cm.mu.Unlock()

	cm.recorder.RecordCertReload(context.Background(), err == nil)
	if err != nil {
		return err
	}

	cm.logger.Info("Certificates reloaded successfully", "server_cert_expiry", expiry)
	return nil
}

func (cm *CertificateManager) triggerReload() {
	cm.logger.Info("Certificate reload triggered by file watcher")
	if err := cm.ReloadCertificates(); err != nil {
		cm.logger.LogError(err, "Failed to reload certificates")
	}
}

// loadCertificatePair reads the pair from content (Vault) or files
func (cm *CertificateManager) loadCertificatePair() (tls.Certificate, time.Time, error) {
	var cert tls.Certificate
	var err error

	switch {
	case cm.config.CertContent != "" && cm.config.KeyContent != "":
		cert, err = tls.X509KeyPair([]byte(cm.config.CertContent), []byte(cm.config.KeyContent))
	case cm.config.CertFile != "" && cm.config.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(cm.config.CertFile, cm.config.KeyFile)
	default:
		return tls.Certificate{}, time.Time{}, fmt.Errorf("TLS certificate and key are required (provide either files or content)")
	}
	if err != nil {
		return tls.Certificate{}, time.Time{}, fmt.Errorf("failed to load server cert/key: %w", err)
	}

	if len(cert.Certificate) == 0 {
		return cert, time.Time{}, nil
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return tls.Certificate{}, time.Time{}, fmt.Errorf("failed to parse server certificate: %w", err)
	}
	return cert, leaf.NotAfter, nil
}

// CheckExpiry returns the time until the server certificate expires
func (cm *CertificateManager) CheckExpiry() (time.Duration, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if cm.serverCertExpiry.IsZero() {
		return 0, fmt.Errorf("no certificates loaded")
	}
	return time.Until(cm.serverCertExpiry), nil
}

// GetMetrics returns certificate management metrics
func (cm *CertificateManager) GetMetrics() *CertificateMetrics {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return &CertificateMetrics{
		ReloadCount:        cm.reloadCount,
		ReloadSuccessCount: cm.reloadSuccessCount,
		ReloadFailureCount: cm.reloadFailureCount,
		LastReloadTime:     cm.lastReloadTime,
		LastReloadSuccess:  cm.lastReloadSuccess,
		LastReloadError:    cm.lastReloadError,
	}
}

// WatcherStatus describes the file watcher for health reporting
func (cm *CertificateManager) WatcherStatus() map[string]any {
	if cm.fileWatcher == nil {
		return map[string]any{"enabled": false}
	}
	return map[string]any{
		"enabled":       true,
		"running":       cm.fileWatcher.IsRunning(),
		"watched_files": cm.fileWatcher.Files(),
	}
}
