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

package health

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-walletstore/pkg/metrics"
	"github.com/jeremyhahn/go-walletstore/pkg/securestore"
	"github.com/jeremyhahn/go-walletstore/pkg/storage"
	"github.com/jeremyhahn/go-walletstore/pkg/wallet"
)

const (
	CheckStorage       = "storage"
	CheckWalletList    = "wallet_list"
	CheckSecureStorage = "secure_storage"
)

// StorageCheck probes the key/value backend with an existence lookup of the
// wallet list.
func StorageCheck(backend storage.Backend) CheckFunc {
	return func(ctx context.Context) CheckResult {
		result := CheckResult{Name: CheckStorage}
		if err := ctx.Err(); err != nil {
			return unhealthy(result, CheckStorage, err)
		}
		if _, err := backend.Exists(storage.WalletListKey); err != nil {
			return unhealthy(result, CheckStorage, err)
		}
		metrics.SetBackendHealth(CheckStorage, true)
		result.Status = StatusHealthy
		result.Message = "storage backend reachable"
		return result
	}
}

// WalletListCheck loads and decodes the wallet list. A list that does not
// decode is unhealthy; every later operation would fail on it.
func WalletListCheck(store wallet.Store) CheckFunc {
	return func(ctx context.Context) CheckResult {
		result := CheckResult{Name: CheckWalletList}
		ws, err := store.Load(ctx)
		if err != nil {
			return unhealthy(result, CheckWalletList, err)
		}
		metrics.SetBackendHealth(CheckWalletList, true)
		counts := ws.CountByMode()
		result.Status = StatusHealthy
		result.Message = fmt.Sprintf("%d wallets (%d secure, %d legacy)",
			len(ws), counts[wallet.ModeSecure], counts[wallet.ModeLegacy])
		return result
	}
}

// SecureStorageCheck lists the secure storage backend. A nil store reports
// degraded: new wallets fall back to legacy storage.
func SecureStorageCheck(store securestore.Store) CheckFunc {
	return func(ctx context.Context) CheckResult {
		result := CheckResult{Name: CheckSecureStorage}
		if store == nil {
			metrics.SetBackendHealth(CheckSecureStorage, false)
			result.Status = StatusDegraded
			result.Message = "secure storage not configured, wallets use legacy storage"
			return result
		}
		ids, err := store.List(ctx)
		if err != nil {
			return unhealthy(result, CheckSecureStorage, err)
		}
		metrics.SetBackendHealth(CheckSecureStorage, true)
		result.Status = StatusHealthy
		result.Message = fmt.Sprintf("%d secure entries", len(ids))
		return result
	}
}

func unhealthy(result CheckResult, backend string, err error) CheckResult {
	metrics.SetBackendHealth(backend, false)
	result.Status = StatusUnhealthy
	result.Error = err.Error()
	return result
}
