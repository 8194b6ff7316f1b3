// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-walletstore.
//
// go-walletstore is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Secure storage backends.
const (
	SecureBackendFile    = "file"
	SecureBackendKeyring = "keyring"
	SecureBackendNone    = "none"
)

// DefaultKeyringService is the OS keychain service name entries are stored under.
const DefaultKeyringService = "asgardex-wallet"

// Config represents the complete wallet store configuration
type Config struct {
	Storage       StorageConfig       `yaml:"storage"`
	Logging       LoggingConfig       `yaml:"logging"`
	SecureStorage SecureStorageConfig `yaml:"secure_storage"`
	Cache         CacheConfig         `yaml:"cache"`
	Keystore      KeystoreConfig      `yaml:"keystore"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Metrics       MetricsConfig       `yaml:"metrics"`

	// Platform is read from ASGARDEX_* environment variables only.
	Platform PlatformConfig `yaml:"-"`
}

// StorageConfig controls where the wallet list and file secure store live
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SecureStorageConfig selects the secure storage backend
type SecureStorageConfig struct {
	Backend     string `yaml:"backend"` // file, keyring, none
	ServiceName string `yaml:"service_name"`
}

// CacheConfig controls the runtime keystore cache
type CacheConfig struct {
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// KeystoreConfig controls keystore encryption
type KeystoreConfig struct {
	// KDFIterations of 0 uses the keystore package default.
	KDFIterations int `yaml:"kdf_iterations"`
	// UnlockAttemptsPerMinute throttles password attempts per wallet.
	// 0 disables throttling.
	UnlockAttemptsPerMinute int `yaml:"unlock_attempts_per_minute"`
}

// TelemetryConfig controls secure storage telemetry
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls Prometheus instrumentation
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultDataDir returns the per-user data directory.
func DefaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".walletstore"
	}
	return filepath.Join(dir, "walletstore")
}

// Default returns a usable configuration.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{DataDir: DefaultDataDir()},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		SecureStorage: SecureStorageConfig{
			Backend:     SecureBackendFile,
			ServiceName: DefaultKeyringService,
		},
		Cache:     CacheConfig{IdleTimeout: 2 * time.Minute},
		Keystore:  KeystoreConfig{UnlockAttemptsPerMinute: 5},
		Telemetry: TelemetryConfig{Enabled: true},
		Metrics:   MetricsConfig{Enabled: true},
		Platform:  DefaultPlatform(),
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	platform, err := LoadPlatform()
	if err != nil {
		return nil, err
	}
	cfg.Platform = platform

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies WALLETSTORE_* environment variable overrides
func applyEnvOverrides(cfg *Config) {
	if dataDir := os.Getenv("WALLETSTORE_DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}

	if level := os.Getenv("WALLETSTORE_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("WALLETSTORE_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	if backend := os.Getenv("WALLETSTORE_SECURE_BACKEND"); backend != "" {
		cfg.SecureStorage.Backend = backend
	}
	if service := os.Getenv("WALLETSTORE_KEYRING_SERVICE"); service != "" {
		cfg.SecureStorage.ServiceName = service
	}

	if idle := os.Getenv("WALLETSTORE_CACHE_IDLE_TIMEOUT"); idle != "" {
		d, err := time.ParseDuration(idle)
		if err != nil {
			log.Printf("Warning: invalid WALLETSTORE_CACHE_IDLE_TIMEOUT value %q, using default %s: %v",
				idle, cfg.Cache.IdleTimeout, err)
		} else {
			cfg.Cache.IdleTimeout = d
		}
	}

	if iterations := os.Getenv("WALLETSTORE_KDF_ITERATIONS"); iterations != "" {
		n, err := strconv.Atoi(iterations)
		if err != nil || n < 0 {
			log.Printf("Warning: invalid WALLETSTORE_KDF_ITERATIONS value %q, using default %d",
				iterations, cfg.Keystore.KDFIterations)
		} else {
			cfg.Keystore.KDFIterations = n
		}
	}

	if attempts := os.Getenv("WALLETSTORE_UNLOCK_ATTEMPTS_PER_MINUTE"); attempts != "" {
		n, err := strconv.Atoi(attempts)
		if err != nil || n < 0 {
			log.Printf("Warning: invalid WALLETSTORE_UNLOCK_ATTEMPTS_PER_MINUTE value %q, using default %d",
				attempts, cfg.Keystore.UnlockAttemptsPerMinute)
		} else {
			cfg.Keystore.UnlockAttemptsPerMinute = n
		}
	}

	overrideBool("WALLETSTORE_TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	overrideBool("WALLETSTORE_METRICS_ENABLED", &cfg.Metrics.Enabled)
}

func overrideBool(key string, target *bool) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using default %t: %v", key, value, *target, err)
		return
	}
	*target = b
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return fmt.Errorf("storage data_dir must be specified")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	switch c.SecureStorage.Backend {
	case SecureBackendFile, SecureBackendNone:
	case SecureBackendKeyring:
		if c.SecureStorage.ServiceName == "" {
			return fmt.Errorf("secure_storage service_name is required for the keyring backend")
		}
	default:
		return fmt.Errorf("invalid secure storage backend: %s (must be file, keyring, or none)", c.SecureStorage.Backend)
	}

	if c.Cache.IdleTimeout < 0 {
		return fmt.Errorf("cache idle_timeout cannot be negative: %s", c.Cache.IdleTimeout)
	}
	if c.Keystore.KDFIterations < 0 {
		return fmt.Errorf("keystore kdf_iterations cannot be negative: %d", c.Keystore.KDFIterations)
	}
	if c.Keystore.UnlockAttemptsPerMinute < 0 {
		return fmt.Errorf("keystore unlock_attempts_per_minute cannot be negative: %d", c.Keystore.UnlockAttemptsPerMinute)
	}
	return nil
}

// WalletsDir returns the directory holding the wallet list.
func (c *Config) WalletsDir() string {
	return filepath.Join(c.Storage.DataDir, "wallets")
}

// SecureDir returns the directory of the file secure store.
func (c *Config) SecureDir() string {
	return filepath.Join(c.Storage.DataDir, "secure")
}
