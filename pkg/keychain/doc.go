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

// Package keychain implements the keystore lifecycle of the wallet store.
//
// # Overview
//
// A Service owns the canonical wallet list and the KeystoreState (none,
// locked or unlocked). Every mutation follows the same order: write the
// secret, persist the list, update in-memory state, update the cache.
//
// # Storage resolution
//
// The Resolver decides per wallet whether the encrypted keystore lives in
// secure storage or is embedded in the wallet list. New wallets go to secure
// storage when a backend is configured and fall back to legacy storage on
// failure, unless the platform policy requires secure storage.
//
// # Runtime cache
//
// Cache keeps resolved keystores keyed by wallet id. One idle timer clears
// the whole cache; lifecycle events (window hidden, focus lost) clear it
// immediately.
//
// # Persistence
//
// Persister is the single path for writing the wallet list. When a write
// fails it runs the supplied rollback once and returns a *PersistError that
// describes the failed action.
package keychain
