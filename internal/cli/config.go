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

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-walletstore/internal/config"
	"github.com/jeremyhahn/go-walletstore/pkg/biometric"
	"github.com/jeremyhahn/go-walletstore/pkg/keychain"
	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
	"github.com/jeremyhahn/go-walletstore/pkg/logging"
	"github.com/jeremyhahn/go-walletstore/pkg/metrics"
	"github.com/jeremyhahn/go-walletstore/pkg/ratelimit"
	"github.com/jeremyhahn/go-walletstore/pkg/securestore"
	"github.com/jeremyhahn/go-walletstore/pkg/storage/file"
	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
	"github.com/jeremyhahn/go-walletstore/pkg/wallet"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// DataDir overrides the configured data directory
	DataDir string

	// OutputFormat controls output formatting (json, text)
	OutputFormat string

	// Verbose enables debug logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
	}
}

// Load resolves the store configuration from the config file, the
// environment and the command line flags.
func (c *Config) Load() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return nil, err
	}
	if c.DataDir != "" {
		cfg.Storage.DataDir = c.DataDir
	}
	if c.Verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// sessionOptions carry the per-command collaborators of a session.
type sessionOptions struct {
	exporter wallet.Exporter
	loader   wallet.Loader
}

// session is a wired wallet store for the duration of one command.
type session struct {
	cfg      *config.Config
	logger   *logging.Logger
	backend  *file.FileStorage
	secureFS *file.FileStorage
	wallets  *wallet.BackendStore
	secure   securestore.Store
	bridge   biometric.Bridge
	service  *keychain.Service
}

// openSession wires storage, secure storage, telemetry and the keychain
// service, then loads the persisted wallet list.
func (c *Config) openSession(ctx context.Context, opts sessionOptions) (*session, error) {
	cfg, err := c.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	s := &session{cfg: cfg, logger: logger}

	s.backend, err = file.New(cfg.WalletsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	s.wallets = wallet.NewStore(s.backend, wallet.WithStoreLogger(logger))

	recorder := newRecorder(cfg, logger)
	policy := cfg.Platform.Policy()
	s.bridge = biometric.ForPolicy(policy, nil, logger, biometric.WithTelemetry(recorder))

	if err := s.openSecure(cfg, logger, recorder); err != nil {
		_ = s.Close()
		return nil, err
	}

	var ksOpts []keystore.Option
	if cfg.Keystore.KDFIterations > 0 {
		ksOpts = append(ksOpts, keystore.WithIterations(cfg.Keystore.KDFIterations))
	}

	cache := keychain.NewCache(
		keychain.WithIdleTimeout(cfg.Cache.IdleTimeout),
		keychain.WithLifecycleSources(keychain.NewSignalSource()),
		keychain.WithCacheLogger(logger),
	)

	attempts := ratelimit.New(&ratelimit.Config{
		Enabled:           cfg.Keystore.UnlockAttemptsPerMinute > 0,
		AttemptsPerMinute: cfg.Keystore.UnlockAttemptsPerMinute,
	})

	svcOpts := keychain.Options{
		Wallets:         s.wallets,
		Secure:          s.secure,
		Bridge:          s.bridge,
		Telemetry:       recorder,
		Exporter:        opts.exporter,
		Loader:          opts.loader,
		Cache:           cache,
		Logger:          logger,
		Attempts:        attempts,
		KeystoreOptions: ksOpts,
		// A terminal has no progress UI to render.
		ImportDelay: -1,
		LoadDelay:   -1,
	}
	s.service, err = keychain.NewService(svcOpts)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	if r := s.service.ReloadPersistentWallets(ctx); r.IsFailure() {
		_ = s.Close()
		return nil, fmt.Errorf("failed to load wallets: %w", r.Err)
	}
	return s, nil
}

func (s *session) openSecure(cfg *config.Config, logger *logging.Logger, recorder *telemetry.Recorder) error {
	storeOpts := []securestore.Option{
		securestore.WithLogger(logger),
		securestore.WithTelemetry(recorder),
		securestore.WithBiometricCheck(s.bridge.CheckDowngrade),
	}

	switch cfg.SecureStorage.Backend {
	case config.SecureBackendFile:
		fs, err := file.New(cfg.SecureDir())
		if err != nil {
			return fmt.Errorf("failed to create secure storage backend: %w", err)
		}
		s.secureFS = fs
		s.secure = securestore.NewFileStore(fs, storeOpts...)
	case config.SecureBackendKeyring:
		store := securestore.NewKeyringStore(cfg.SecureStorage.ServiceName, storeOpts...)
		if err := store.Available(); err != nil {
			// Writes will fail and the platform policy decides between
			// blocking and the legacy fallback.
			logger.Warn("OS keychain unavailable", "error", err)
		}
		s.secure = store
	case config.SecureBackendNone:
	default:
		return fmt.Errorf("unknown secure storage backend: %s", cfg.SecureStorage.Backend)
	}
	return nil
}

func newRecorder(cfg *config.Config, logger *logging.Logger) *telemetry.Recorder {
	if !cfg.Telemetry.Enabled {
		return nil
	}
	sinks := []telemetry.Sink{telemetry.NewLogSink(logger)}
	if cfg.Metrics.Enabled {
		sinks = append(sinks, telemetry.NewMetricsSink())
	}
	return telemetry.NewRecorder(cfg.Platform.AppVersion, cfg.Platform.Device(), telemetry.MultiSink(sinks...))
}

// Close releases the service and the storage backends.
func (s *session) Close() error {
	var firstErr error
	if s.service != nil {
		if err := s.service.Close(); err != nil {
			firstErr = err
		}
	}
	for _, fs := range []*file.FileStorage{s.secureFS, s.backend} {
		if fs == nil {
			continue
		}
		if err := fs.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// defaultWatchDebounce coalesces bursts of wallet list writes.
const defaultWatchDebounce = 250 * time.Millisecond
