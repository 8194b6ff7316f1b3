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

// Package storage provides the key/value persistence layer under the wallet
// list store and the file-backed secure storage.
//
// A Backend holds three kinds of keys: the encoded wallet list
// (WalletListKey), the keystore of single-wallet releases
// (LegacyKeystoreKey) and secure storage entries (SecureEntryPath). The
// in-memory backend serves tests and ephemeral sessions; package file
// stores keys under a data directory.
package storage

import (
	"errors"
	"io/fs"
)

var (
	// ErrClosed is returned by every operation on a closed backend.
	ErrClosed = errors.New("storage: closed")

	// ErrNotFound is returned when a key is not present.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidKey is returned when a key is empty or escapes the storage root.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Backend is a flat key/value store. Implementations are safe for
// concurrent use and never hand out slices they keep a reference to.
type Backend interface {
	// Get returns the value of key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put creates or replaces key. A nil opts uses the backend defaults.
	Put(key string, value []byte, opts *Options) error

	// Delete removes key, or returns ErrNotFound.
	Delete(key string) error

	// List returns the keys starting with prefix, sorted. An empty prefix
	// lists everything.
	List(prefix string) ([]string, error)

	Exists(key string) (bool, error)

	Close() error
}

// Options tune a single Put.
type Options struct {
	// Permissions of the written file. File backends only.
	Permissions fs.FileMode

	// Atomic requests a write-then-rename so a crash never leaves a half
	// written wallet list behind. Ignored by backends that are atomic anyway.
	Atomic bool
}

// DefaultOptions returns the options used for wallet lists and keystores:
// owner-only permissions, atomic replacement.
func DefaultOptions() *Options {
	return &Options{
		Permissions: 0600,
		Atomic:      true,
	}
}
