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

// Package file provides a file-based implementation of the storage.Backend interface.
// Values are stored as files under a root directory; writes requested as atomic
// go through a temporary file and a rename so a crash never leaves a truncated
// wallet list behind.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-walletstore/pkg/storage"
)

const (
	// Default directory permissions (owner rwx only)
	defaultDirPerms = 0700

	// Everything written here is wallet material: owner rw only
	defaultPerms = 0600

	tempPrefix = ".tmp-"
)

// FileStorage is a file-based implementation of storage.Backend.
// It stores key-value pairs as files in a directory hierarchy and is thread-safe.
type FileStorage struct {
	mu      sync.RWMutex
	rootDir string
}

// New creates a new FileStorage instance with the specified root directory.
// The root directory is created with 0700 permissions if it doesn't exist.
func New(rootDir string) (*FileStorage, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("file storage: root directory cannot be empty")
	}

	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to resolve root directory: %w", err)
	}

	if err := os.MkdirAll(abs, defaultDirPerms); err != nil {
		return nil, fmt.Errorf("file storage: failed to create root directory: %w", err)
	}

	return &FileStorage{
		rootDir: abs,
	}, nil
}

// Root returns the absolute root directory of the backend.
func (f *FileStorage) Root() string {
	return f.rootDir
}

// Get retrieves the value for the given key.
// Returns storage.ErrNotFound if the key does not exist.
func (f *FileStorage) Get(key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	filePath, err := f.keyToPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("file storage: failed to read key %q: %w", key, err)
	}

	return data, nil
}

// Put stores the value for the given key.
// If the key already exists, it will be overwritten.
func (f *FileStorage) Put(key string, value []byte, opts *storage.Options) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	filePath, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, defaultDirPerms); err != nil {
		return fmt.Errorf("file storage: failed to create directory for key %q: %w", key, err)
	}

	perms := getFilePermissions(opts)

	if opts == nil || !opts.Atomic {
		if err := os.WriteFile(filePath, value, perms); err != nil {
			return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
		}
		return nil
	}

	if err := writeAtomic(dir, filePath, value, perms); err != nil {
		return fmt.Errorf("file storage: failed to write key %q: %w", key, err)
	}
	return nil
}

// Delete removes the key and its value from storage.
// Returns storage.ErrNotFound if the key does not exist.
func (f *FileStorage) Delete(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	filePath, err := f.keyToPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("file storage: failed to delete key %q: %w", key, err)
	}

	return nil
}

// List returns all keys with the given prefix.
// If prefix is empty, all keys are returned.
// Keys are returned in sorted order.
func (f *FileStorage) List(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0)

	err := filepath.WalkDir(f.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		key, err := f.pathToKey(path)
		if err != nil {
			return err
		}

		if prefix == "" || strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("file storage: failed to list keys: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// Exists checks if a key exists in storage.
func (f *FileStorage) Exists(key string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	filePath, err := f.keyToPath(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("file storage: failed to check key %q: %w", key, err)
	}

	return true, nil
}

// Close releases any resources held by the backend.
// For file storage, this is a no-op but provided for interface compliance.
func (f *FileStorage) Close() error {
	return nil
}

// keyToPath converts a storage key to a file path under the root directory.
func (f *FileStorage) keyToPath(key string) (string, error) {
	if err := validateStorageKey(key); err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidKey, err)
	}
	return filepath.Join(f.rootDir, filepath.FromSlash(key)), nil
}

// validateStorageKey allows path separators for organization but blocks traversal.
func validateStorageKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	if strings.Contains(key, "\x00") {
		return fmt.Errorf("key contains null byte")
	}

	if filepath.IsAbs(key) || strings.HasPrefix(key, "/") {
		return fmt.Errorf("key cannot be an absolute path")
	}

	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("key contains path traversal attempt")
	}
	if cleaned == "." {
		return fmt.Errorf("key resolves to the storage root")
	}

	return nil
}

// pathToKey converts a file path to a storage key.
func (f *FileStorage) pathToKey(path string) (string, error) {
	rel, err := filepath.Rel(f.rootDir, path)
	if err != nil {
		return "", fmt.Errorf("file storage: failed to convert path to key: %w", err)
	}
	return filepath.ToSlash(rel), nil
}

func getFilePermissions(opts *storage.Options) fs.FileMode {
	if opts != nil && opts.Permissions != 0 {
		return opts.Permissions
	}
	return defaultPerms
}

func writeAtomic(dir, filePath string, value []byte, perms fs.FileMode) error {
	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perms); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		cleanup()
		return err
	}
	return nil
}
