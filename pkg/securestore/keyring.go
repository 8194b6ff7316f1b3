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

package securestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// DefaultService is the OS keychain service name for wallet entries.
	DefaultService = "asgardex-wallet"

	// keyringIndexKey stores the id list; keychains have no native listing.
	keyringIndexKey = "_index"
)

// KeyringStore keeps entries in the OS keychain:
//   - macOS: Keychain
//   - Windows: Credential Manager
//   - Linux: Secret Service (libsecret)
type KeyringStore struct {
	service string
	core    core
	mu      sync.Mutex
}

// NewKeyringStore returns a store for service. It does not touch the
// keychain; call Available to probe it.
func NewKeyringStore(service string, opts ...Option) *KeyringStore {
	if service == "" {
		service = DefaultService
	}
	return &KeyringStore{service: service, core: newCore("securestore-keyring", opts)}
}

// Available reports ErrUnavailable when the keychain cannot be reached,
// for example on Linux without a running secret service.
func (s *KeyringStore) Available() error {
	_, err := keyring.Get(s.service, keyringIndexKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *KeyringStore) Write(ctx context.Context, params WriteParams) (WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return WriteResult{}, err
	}
	id, err := s.core.resolveID(params)
	if err != nil {
		return WriteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var previous []byte
	existing, err := keyring.Get(s.service, id)
	switch {
	case err == nil:
		previous = []byte(existing)
	case !errors.Is(err, keyring.ErrNotFound):
		return WriteResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	data, updatedAt, err := s.core.seal(params, previous)
	if err != nil {
		return WriteResult{}, err
	}
	if err := keyring.Set(s.service, id, string(data)); err != nil {
		return WriteResult{}, fmt.Errorf("securestore: keychain write %s: %w", id, err)
	}

	if previous == nil {
		if err := s.updateIndex(func(ids []string) []string { return append(ids, id) }); err != nil {
			// Roll back so the index never misses an entry.
			_ = keyring.Delete(s.service, id)
			return WriteResult{}, err
		}
	}

	s.core.logger.Debug("secure entry written", "biometric_required", params.BiometricRequired)
	return WriteResult{SecureKeyID: id, UpdatedAt: updatedAt}, nil
}

func (s *KeyringStore) Read(ctx context.Context, id string) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, err
	}
	s.mu.Lock()
	data, err := keyring.Get(s.service, id)
	s.mu.Unlock()

	if errors.Is(err, keyring.ErrNotFound) {
		return Payload{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.core.open(ctx, id, []byte(data))
}

func (s *KeyringStore) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(s.service, id); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("securestore: keychain remove %s: %w", id, err)
	}
	return s.updateIndex(func(ids []string) []string {
		out := ids[:0]
		for _, existing := range ids {
			if existing != id {
				out = append(out, existing)
			}
		}
		return out
	})
}

func (s *KeyringStore) Exists(ctx context.Context, id string) (ExistsResult, error) {
	if err := ctx.Err(); err != nil {
		return ExistsResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := keyring.Get(s.service, id)
	switch {
	case err == nil:
		return ExistsResult{Exists: true, Supported: true}, nil
	case errors.Is(err, keyring.ErrNotFound):
		return ExistsResult{Supported: true}, nil
	default:
		return ExistsResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func (s *KeyringStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	out := filterIDs(ids)
	sort.Strings(out)
	return out, nil
}

// readIndex returns the stored id list. Callers hold s.mu.
func (s *KeyringStore) readIndex() ([]string, error) {
	raw, err := keyring.Get(s.service, keyringIndexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("%w: keychain index: %v", ErrMalformedPayload, err)
	}
	return ids, nil
}

// updateIndex rewrites the id list. Callers hold s.mu.
func (s *KeyringStore) updateIndex(fn func([]string) []string) error {
	ids, err := s.readIndex()
	if err != nil {
		return err
	}
	data, err := json.Marshal(fn(ids))
	if err != nil {
		return fmt.Errorf("securestore: encode keychain index: %w", err)
	}
	if err := keyring.Set(s.service, keyringIndexKey, string(data)); err != nil {
		return fmt.Errorf("securestore: keychain index: %w", err)
	}
	return nil
}
