package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
)

var errMissingCertificate = errors.New("TLS certificate and key are required (provide either files or content)")

// minTLSVersions maps the accepted server.tls.minVersion values
var minTLSVersions = map[string]uint16{
	"1.2": tls.VersionTLS12,
	"1.3": tls.VersionTLS13,
}

// configureTLS attaches a TLS config to httpServer when the wizard is served
// over HTTPS and prints the address visitors should open.
func (s *Server) configureTLS(httpServer *http.Server) error {
	switch s.TLSConfig.Mode {
	case "disabled", "":
		fmt.Printf("Wizard available at http://%s (TLS disabled)\n", httpServer.Addr)
		return nil
	case "server":
		cert, err := s.loadServerCertificate()
		if err != nil {
			return fmt.Errorf("failed to set up TLS: %w", err)
		}
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h2", "http/1.1"},
		}
		s.configureTLSVersion(tlsConfig)
		httpServer.TLSConfig = tlsConfig
		fmt.Printf("Wizard available at https://%s\n", httpServer.Addr)
		return nil
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", s.TLSConfig.Mode)
	}
}

// loadServerCertificate prefers PEM content, which is how Vault delivers
// certificates, over certificate files on disk.
func (s *Server) loadServerCertificate() (tls.Certificate, error) {
	t := s.TLSConfig
	switch {
	case t.CertContent != "" && t.KeyContent != "":
		cert, err := tls.X509KeyPair([]byte(t.CertContent), []byte(t.KeyContent))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to parse server cert/key content: %w", err)
		}
		return cert, nil
	case t.CertFile != "" && t.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key files: %w", err)
		}
		return cert, nil
	default:
		return tls.Certificate{}, errMissingCertificate
	}
}

// configureTLSVersion applies the configured minimum version, TLS 1.2 unless
// 1.3 is requested.
func (s *Server) configureTLSVersion(tlsConfig *tls.Config) {
	version, ok := minTLSVersions[s.TLSConfig.MinVersion]
	if !ok {
		version = tls.VersionTLS12
	}
	tlsConfig.MinVersion = version
}
