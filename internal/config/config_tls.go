package config

import (
	"fmt"

	"skillwizard/internal/errors"
)

// ValidateTLSConfig checks server.tls after flag overrides are applied
func (c *Config) ValidateTLSConfig() error {
	tls := c.Server.TLS
	if err := validateTLSMode(tls); err != nil {
		return err
	}
	return validateTLSVersion(tls)
}

func tlsConfigError(field, format string, args ...any) error {
	return errors.NewConfigError(errors.ErrCodeInvalidConfig, fmt.Sprintf(format, args...), nil).
		WithContext("field", "server.tls."+field)
}

func validateTLSMode(tls TLSConfig) error {
	switch tls.Mode {
	case "disabled":
		return nil
	case "server":
	default:
		return tlsConfigError("mode", "invalid TLS mode: %s (must be 'disabled' or 'server')", tls.Mode)
	}

	hasCert := tls.CertFile != "" || tls.CertContent != ""
	hasKey := tls.KeyFile != "" || tls.KeyContent != ""
	switch {
	case !hasCert || !hasKey:
		return tlsConfigError("certFile", "TLS certificate and key are required for server mode (provide either files or content)")
	case tls.CertFile != "" && tls.CertContent != "":
		return tlsConfigError("certFile", "cannot specify both certFile and certContent")
	case tls.KeyFile != "" && tls.KeyContent != "":
		return tlsConfigError("keyFile", "cannot specify both keyFile and keyContent")
	}
	return nil
}

func validateTLSVersion(tls TLSConfig) error {
	switch tls.MinVersion {
	case "", "1.2", "1.3":
		return nil
	default:
		return tlsConfigError("minVersion", "invalid TLS minVersion: %s (must be '1.2' or '1.3')", tls.MinVersion)
	}
}
