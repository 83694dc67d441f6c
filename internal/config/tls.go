// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-turbocharger.
//
// go-turbocharger is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig controls TLS on the API listener. The server certificate comes
// from a configured key bundle or from PEM files.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Bundle   string `yaml:"bundle"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// none, request, require, verify, require_and_verify
	ClientAuth string `yaml:"client_auth"`
	// TLS1.2 or TLS1.3
	MinVersion string `yaml:"min_version"`
}

// Build returns the server tls.Config. When cert is nil the certificate is
// read from CertFile and KeyFile. A disabled config returns nil.
func (cfg *TLSConfig) Build(cert *tls.Certificate) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cert == nil {
		pair, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load server certificate: %w", err)
		}
		cert = &pair
	}

	// #nosec G402 - MinVersion defaults to TLS 1.2
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   parseTLSVersion(cfg.MinVersion),
	}

	clientAuth, err := parseClientAuthType(cfg.ClientAuth)
	if err != nil {
		return nil, err
	}
	tlsConfig.ClientAuth = clientAuth
	if clientAuth != tls.NoClientCert && cfg.CAFile != "" {
		pool, err := loadCertPool(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client CA certificates: %w", err)
		}
		tlsConfig.ClientCAs = pool
	}
	return tlsConfig, nil
}

func parseTLSVersion(version string) uint16 {
	if version == "TLS1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

func parseClientAuthType(authType string) (tls.ClientAuthType, error) {
	switch authType {
	case "none", "":
		return tls.NoClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "require":
		return tls.RequireAnyClientCert, nil
	case "verify":
		return tls.VerifyClientCertIfGiven, nil
	case "require_and_verify":
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, fmt.Errorf("unknown client auth type: %s", authType)
	}
}

func loadCertPool(caFile string) (*x509.CertPool, error) {
	// #nosec G304 - CA file path from trusted config
	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file %s: %w", caFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate from %s", caFile)
	}
	return pool, nil
}
