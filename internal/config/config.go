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

// Package config loads the turbod and turbo configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-turbocharger/pkg/algorithm"
	"github.com/jeremyhahn/go-turbocharger/pkg/keystore"
	"github.com/jeremyhahn/go-turbocharger/pkg/ratelimit"
	"github.com/jeremyhahn/go-turbocharger/pkg/resource"
	"github.com/jeremyhahn/go-turbocharger/pkg/snowflake"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

// Bundle sources
const (
	SourceStore  = "store"
	SourcePEM    = "pem"
	SourceSecret = "secret"
)

// Config represents the complete configuration
type Config struct {
	Server     ServerConfig               `yaml:"server"`
	Logging    LoggingConfig              `yaml:"logging"`
	TLS        TLSConfig                  `yaml:"tls"`
	Metrics    MetricsConfig              `yaml:"metrics"`
	RateLimit  ratelimit.Config           `yaml:"ratelimit"`
	Health     HealthConfig               `yaml:"health"`
	Snowflake  SnowflakeConfig            `yaml:"snowflake"`
	Resolvers  ResolversConfig            `yaml:"resolvers"`
	Watch      WatchConfig                `yaml:"watch"`
	Bundles    map[string]BundleConfig    `yaml:"bundles"`
	Algorithms map[string]AlgorithmConfig `yaml:"algorithms"`
	Tokens     TokensConfig               `yaml:"tokens"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig lists the origins allowed to call the API from a browser
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Port    int    `yaml:"port"`
}

// HealthConfig controls the health probes
type HealthConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// SnowflakeConfig identifies this node in generated IDs
type SnowflakeConfig struct {
	WorkerID     int64  `yaml:"worker_id"`
	DatacenterID int64  `yaml:"datacenter_id"`
	Epoch        string `yaml:"epoch"` // RFC 3339, empty for the default epoch
}

// ResolversConfig enables the remote placeholder providers
type ResolversConfig struct {
	Vault   *resource.VaultConfig `yaml:"vault,omitempty"`
	AzureKV *resource.AzureConfig `yaml:"azurekv,omitempty"`
}

// WatchConfig controls reloading on file changes
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Paths    []string      `yaml:"paths"`
	Debounce time.Duration `yaml:"debounce"`
}

// BundleConfig describes where one key bundle comes from. String values may
// contain ${provider:key} placeholders.
type BundleConfig struct {
	Source          string   `yaml:"source"`
	Location        string   `yaml:"location"`
	Fallback        []string `yaml:"fallback,omitempty"`
	Format          string   `yaml:"format"`
	StorePassphrase string   `yaml:"store_passphrase"`
	Alias           string   `yaml:"alias"`
	KeyPassphrase   string   `yaml:"key_passphrase"`
	Secret          string   `yaml:"secret"`
}

// AlgorithmConfig describes one signing algorithm
type AlgorithmConfig struct {
	Family        string `yaml:"family"`
	Strength      string `yaml:"strength"`
	Bundle        string `yaml:"bundle"`
	Secret        string `yaml:"secret"`
	SM2PrivateKey string `yaml:"sm2_private_key"`
	SM2PublicKey  string `yaml:"sm2_public_key"`
	SM2ID         string `yaml:"sm2_id"`
	SM2Mode       string `yaml:"sm2_mode"`
	KeyID         string `yaml:"key_id"`
}

// TokensConfig controls token issuance
type TokensConfig struct {
	Issuer    string        `yaml:"issuer"`
	Audience  []string      `yaml:"audience"`
	TTL       time.Duration `yaml:"ttl"`
	Leeway    time.Duration `yaml:"leeway"`
	Algorithm string        `yaml:"algorithm"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090},
		Health:  HealthConfig{Enabled: true, Timeout: 5 * time.Second},
		RateLimit: ratelimit.Config{
			RequestsPerMinute: 600,
		},
		Watch:  WatchConfig{Debounce: 500 * time.Millisecond},
		Tokens: TokensConfig{TTL: time.Hour},
	}
}

// Load reads configuration from a YAML file on the OS filesystem.
func Load(path string) (*Config, error) {
	return LoadFs(afero.NewOsFs(), path)
}

// LoadFs reads configuration from fs, applies environment overrides and
// validates the result.
func LoadFs(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func envInt(name string, dst *int) error {
	if v := os.Getenv(name); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
		*dst = n
	}
	return nil
}

func envInt64(name string, dst *int64) error {
	if v := os.Getenv(name); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
		*dst = n
	}
	return nil
}

func envBool(name string, dst *bool) error {
	if v := os.Getenv(name); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, name, err)
		}
		*dst = b
	}
	return nil
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

// applyEnvOverrides applies TURBO_* and the standard Vault and Azure
// environment variables.
func applyEnvOverrides(cfg *Config) error {
	envString("TURBO_HOST", &cfg.Server.Host)
	envString("TURBO_LOG_LEVEL", &cfg.Logging.Level)
	envString("TURBO_LOG_FORMAT", &cfg.Logging.Format)
	envString("TURBO_TOKEN_ISSUER", &cfg.Tokens.Issuer)
	envString("TURBO_TOKEN_ALGORITHM", &cfg.Tokens.Algorithm)

	for _, err := range []error{
		envInt("TURBO_PORT", &cfg.Server.Port),
		envInt("TURBO_METRICS_PORT", &cfg.Metrics.Port),
		envBool("TURBO_METRICS_ENABLED", &cfg.Metrics.Enabled),
		envBool("TURBO_RATELIMIT_ENABLED", &cfg.RateLimit.Enabled),
		envBool("TURBO_WATCH_ENABLED", &cfg.Watch.Enabled),
		envInt64("TURBO_WORKER_ID", &cfg.Snowflake.WorkerID),
		envInt64("TURBO_DATACENTER_ID", &cfg.Snowflake.DatacenterID),
	} {
		if err != nil {
			return err
		}
	}

	if v := cfg.Resolvers.Vault; v != nil {
		envString("VAULT_ADDR", &v.Address)
		envString("VAULT_TOKEN", &v.Token)
		envString("VAULT_NAMESPACE", &v.Namespace)
	}
	if az := cfg.Resolvers.AzureKV; az != nil {
		envString("AZURE_KEYVAULT_URL", &az.VaultURL)
		envString("AZURE_TENANT_ID", &az.TenantID)
		envString("AZURE_CLIENT_ID", &az.ClientID)
		envString("AZURE_CLIENT_SECRET", &az.ClientSecret)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid("invalid server port: %d", c.Server.Port)
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return invalid("invalid metrics port: %d", c.Metrics.Port)
	}
	if c.Metrics.Enabled && c.Metrics.Port == c.Server.Port {
		return invalid("metrics port must differ from server port")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("invalid log level: %s (must be debug, info, warn or error)", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return invalid("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.TLS.Enabled {
		if c.TLS.Bundle == "" && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
			return invalid("tls requires a bundle or cert_file and key_file")
		}
		if c.TLS.Bundle != "" {
			if _, ok := c.Bundles[c.TLS.Bundle]; !ok {
				return invalid("tls bundle %q is not configured", c.TLS.Bundle)
			}
		}
		if _, err := parseClientAuthType(c.TLS.ClientAuth); err != nil {
			return invalid("tls: %v", err)
		}
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return invalid("ratelimit requests_per_minute must be positive")
	}

	if c.Snowflake.WorkerID < 0 || c.Snowflake.WorkerID > snowflake.MaxWorkerID {
		return invalid("snowflake worker_id must be between 0 and %d", snowflake.MaxWorkerID)
	}
	if c.Snowflake.DatacenterID < 0 || c.Snowflake.DatacenterID > snowflake.MaxDatacenterID {
		return invalid("snowflake datacenter_id must be between 0 and %d", snowflake.MaxDatacenterID)
	}
	if _, err := c.Snowflake.EpochTime(); err != nil {
		return invalid("snowflake epoch: %v", err)
	}

	if v := c.Resolvers.Vault; v != nil && v.Address == "" {
		return invalid("resolvers.vault.address is required")
	}
	if az := c.Resolvers.AzureKV; az != nil && az.VaultURL == "" {
		return invalid("resolvers.azurekv.vault_url is required")
	}

	for name, b := range c.Bundles {
		if err := b.validate(); err != nil {
			return invalid("bundle %q: %v", name, err)
		}
	}
	for name, a := range c.Algorithms {
		if err := a.validate(c.Bundles); err != nil {
			return invalid("algorithm %q: %v", name, err)
		}
	}

	if c.Tokens.Algorithm != "" {
		if _, ok := c.Algorithms[c.Tokens.Algorithm]; !ok {
			return invalid("tokens.algorithm %q is not configured", c.Tokens.Algorithm)
		}
	}
	if c.Tokens.TTL < 0 || c.Tokens.Leeway < 0 {
		return invalid("tokens ttl and leeway must not be negative")
	}
	return nil
}

// EpochTime returns the configured epoch, or snowflake.DefaultEpoch when
// none is set.
func (s SnowflakeConfig) EpochTime() (time.Time, error) {
	if s.Epoch == "" {
		return snowflake.DefaultEpoch, nil
	}
	return time.Parse(time.RFC3339, s.Epoch)
}

func (b BundleConfig) validate() error {
	switch strings.ToLower(b.Source) {
	case SourceStore:
		if strings.TrimSpace(b.Location) == "" {
			return errors.New("location is required")
		}
		if strings.TrimSpace(b.Alias) == "" {
			return errors.New("alias is required")
		}
		if _, err := keystore.ParseFormat(b.Format); err != nil {
			return err
		}
	case SourcePEM:
		if strings.TrimSpace(b.Location) == "" {
			return errors.New("location is required")
		}
	case SourceSecret:
		if b.Secret == "" {
			return errors.New("secret is required")
		}
	default:
		return fmt.Errorf("unknown source %q (must be store, pem or secret)", b.Source)
	}
	return nil
}

func (a AlgorithmConfig) validate(bundles map[string]BundleConfig) error {
	family, err := algorithm.ParseFamily(a.Family)
	if err != nil {
		return err
	}

	switch family {
	case algorithm.FamilySM2:
		if a.SM2PrivateKey == "" && a.SM2PublicKey == "" {
			return errors.New("sm2_private_key or sm2_public_key is required")
		}
		if _, err := algorithm.ParseSM2Mode(a.SM2Mode); err != nil {
			return err
		}
		return nil
	case algorithm.FamilyRSA, algorithm.FamilyECDSA, algorithm.FamilyHMAC:
		if _, err := algorithm.ParseStrength(a.Strength); err != nil {
			return err
		}
	}

	if family == algorithm.FamilyHMAC && a.Secret != "" {
		return nil
	}
	if a.Bundle == "" {
		return errors.New("bundle is required")
	}
	if _, ok := bundles[a.Bundle]; !ok {
		return fmt.Errorf("unknown bundle %q", a.Bundle)
	}
	return nil
}
