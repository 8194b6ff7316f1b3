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

package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
	"github.com/jeremyhahn/go-walletstore/pkg/logging"
	"github.com/jeremyhahn/go-walletstore/pkg/storage"
)

// LegacyWalletID is the id given to a migrated single-keystore wallet.
const LegacyWalletID = 1

// Store persists the wallet list.
type Store interface {
	// Load returns the persisted list. A missing list is empty.
	Load(ctx context.Context) (Wallets, error)
	// Save validates and writes ws, returning the list as persisted.
	Save(ctx context.Context, ws Wallets) (Wallets, error)
}

// StoreOption configures a BackendStore.
type StoreOption func(*BackendStore)

// WithStoreLogger sets the store logger.
func WithStoreLogger(logger *logging.Logger) StoreOption {
	return func(s *BackendStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStoreClock overrides the clock used to name legacy backups.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *BackendStore) {
		if now != nil {
			s.now = now
		}
	}
}

// BackendStore keeps the wallet list in a storage.Backend under
// wallets.json.
type BackendStore struct {
	backend storage.Backend
	logger  *logging.Logger
	now     func() time.Time
	mu      sync.Mutex
}

// NewStore returns a list store over backend.
func NewStore(backend storage.Backend, opts ...StoreOption) *BackendStore {
	s := &BackendStore{
		backend: backend,
		logger:  logging.NewDiscard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Component("wallet-store")
	return s
}

// Load reads the list. When no list exists yet it migrates a legacy
// keystore.json, if present, into a single selected wallet and moves the
// legacy file aside.
func (s *BackendStore) Load(ctx context.Context) (Wallets, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.backend.Get(storage.WalletListKey)
	switch {
	case err == nil:
		ws, err := Decode(data)
		if err != nil {
			return nil, err
		}
		if len(ws) > 0 {
			return ws, nil
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("wallet: read wallet list: %w", err)
	}

	migrated, ok := s.migrateLegacy()
	if !ok {
		if err == nil {
			return Wallets{}, nil
		}
		return s.save(Wallets{})
	}

	saved, err := s.save(migrated)
	if err != nil {
		return nil, err
	}
	backup := storage.LegacyBackupKey(s.now().UnixMilli())
	if err := storage.Move(s.backend, storage.LegacyKeystoreKey, backup); err != nil {
		s.logger.Warn("could not move legacy keystore aside", "error", err)
	} else {
		s.logger.Info("migrated legacy keystore", "backup", backup)
	}
	return saved, nil
}

// migrateLegacy builds the wallet list for a legacy keystore.json. It
// reports false when there is nothing usable to migrate.
func (s *BackendStore) migrateLegacy() (Wallets, bool) {
	data, err := s.backend.Get(storage.LegacyKeystoreKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("could not read legacy keystore", "error", err)
		}
		return nil, false
	}

	ks, err := keystore.Parse(data)
	if err != nil {
		s.logger.Warn("ignoring invalid legacy keystore", "error", err)
		return nil, false
	}

	return Wallets{LegacyWallet{
		Metadata: Metadata{ID: LegacyWalletID, Name: DefaultName(LegacyWalletID), Selected: true},
		Keystore: ks,
	}}, true
}

func (s *BackendStore) Save(ctx context.Context, ws Wallets) (Wallets, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ws)
}

func (s *BackendStore) save(ws Wallets) (Wallets, error) {
	if ws == nil {
		ws = Wallets{}
	}
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	data, err := Encode(ws)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Put(storage.WalletListKey, data, storage.DefaultOptions()); err != nil {
		return nil, fmt.Errorf("wallet: write wallet list: %w", err)
	}
	return ws, nil
}
