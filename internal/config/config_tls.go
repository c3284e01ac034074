package config

import "fmt"

// ValidateTLSConfig checks the TLS mode, its certificate sources and the
// minimum version. It runs again after command-line overrides.
func (c *Config) ValidateTLSConfig() error {
	tls := c.Server.TLS

	switch tls.Mode {
	case "", "disabled":
	case "server":
		hasCert := tls.CertFile != "" || tls.CertContent != ""
		hasKey := tls.KeyFile != "" || tls.KeyContent != ""
		if !hasCert || !hasKey {
			return fmt.Errorf("TLS certificate and key are required for server mode (provide either files or content)")
		}
		if tls.CertFile != "" && tls.CertContent != "" {
			return fmt.Errorf("cannot specify both certFile and certContent - choose one")
		}
		if tls.KeyFile != "" && tls.KeyContent != "" {
			return fmt.Errorf("cannot specify both keyFile and keyContent - choose one")
		}
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", tls.Mode)
	}

	switch tls.MinVersion {
	case "", "1.2", "1.3":
	default:
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", tls.MinVersion)
	}
	return nil
}
