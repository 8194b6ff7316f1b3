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

package storage

import (
	"fmt"
	"strings"
)

const (
	// WalletListKey holds the encoded wallet list.
	WalletListKey = "wallets.json"

	// LegacyKeystoreKey holds the single keystore written by releases that
	// predate multi-wallet support.
	LegacyKeystoreKey = "keystore.json"

	// SecurePrefix is the namespace for file-backed secure storage entries.
	SecurePrefix = "secure/"

	secureSuffix = ".json"
)

// SecureEntryPath returns the storage path for a secure storage entry.
// The path follows the convention: secure/{id}.json
func SecureEntryPath(id string) string {
	return SecurePrefix + id + secureSuffix
}

// LegacyBackupKey returns the key a migrated legacy keystore is moved to.
func LegacyBackupKey(unixMillis int64) string {
	return fmt.Sprintf("keystore-legacy-%d.json", unixMillis)
}

// ListSecureEntries returns the ids of every secure storage entry in the
// backend, stripped of the "secure/" prefix and ".json" suffix.
func ListSecureEntries(backend Backend) ([]string, error) {
	keys, err := backend.List(SecurePrefix)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.HasSuffix(k, secureSuffix) {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(k, SecurePrefix), secureSuffix)
		if id != "" && !strings.Contains(id, "/") {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Move copies the value at src to dst and removes src. It is used for
// one-shot renames such as the legacy keystore backup; it is not atomic
// across the two keys.
func Move(backend Backend, src, dst string) error {
	data, err := backend.Get(src)
	if err != nil {
		return err
	}
	if err := backend.Put(dst, data, DefaultOptions()); err != nil {
		return err
	}
	return backend.Delete(src)
}
