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
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jeremyhahn/go-walletstore/pkg/storage"
)

// FileStore keeps entries in a storage.Backend under secure/<id>.json.
type FileStore struct {
	backend storage.Backend
	core    core
	mu      sync.Mutex
}

// NewFileStore returns a store over backend.
func NewFileStore(backend storage.Backend, opts ...Option) *FileStore {
	return &FileStore{backend: backend, core: newCore("securestore-file", opts)}
}

func (s *FileStore) Write(ctx context.Context, params WriteParams) (WriteResult, error) {
	if err := ctx.Err(); err != nil {
		return WriteResult{}, err
	}
	id, err := s.core.resolveID(params)
	if err != nil {
		return WriteResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := storage.SecureEntryPath(id)
	previous, err := s.backend.Get(key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return WriteResult{}, fmt.Errorf("securestore: read %s: %w", id, err)
	}

	data, updatedAt, err := s.core.seal(params, previous)
	if err != nil {
		return WriteResult{}, err
	}
	if err := s.backend.Put(key, data, storage.DefaultOptions()); err != nil {
		return WriteResult{}, fmt.Errorf("securestore: write %s: %w", id, err)
	}

	s.core.logger.Debug("secure entry written", "biometric_required", params.BiometricRequired)
	return WriteResult{SecureKeyID: id, UpdatedAt: updatedAt}, nil
}

func (s *FileStore) Read(ctx context.Context, id string) (Payload, error) {
	if err := ctx.Err(); err != nil {
		return Payload{}, err
	}
	data, err := s.get(id)
	if err != nil {
		return Payload{}, err
	}
	return s.core.open(ctx, id, data)
}

func (s *FileStore) get(id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.backend.Get(storage.SecureEntryPath(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("securestore: read %s: %w", id, err)
	}
	return data, nil
}

func (s *FileStore) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.backend.Delete(storage.SecureEntryPath(id))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("securestore: remove %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) Exists(ctx context.Context, id string) (ExistsResult, error) {
	if err := ctx.Err(); err != nil {
		return ExistsResult{}, err
	}
	ok, err := s.backend.Exists(storage.SecureEntryPath(id))
	if err != nil {
		return ExistsResult{Supported: true}, fmt.Errorf("securestore: exists %s: %w", id, err)
	}
	return ExistsResult{Exists: ok, Supported: true}, nil
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := storage.ListSecureEntries(s.backend)
	if err != nil {
		return nil, fmt.Errorf("securestore: list: %w", err)
	}
	out := filterIDs(ids)
	sort.Strings(out)
	return out, nil
}
