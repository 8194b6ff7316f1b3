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

package keychain

import (
	"context"
	"time"

	"github.com/jeremyhahn/go-walletstore/pkg/logging"
	"github.com/jeremyhahn/go-walletstore/pkg/metrics"
	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
	"github.com/jeremyhahn/go-walletstore/pkg/wallet"
)

// Persist actions.
const (
	ActionAddWallet    = "add_wallet"
	ActionRemoveWallet = "remove_wallet"
	ActionChangeWallet = "change_wallet"
	ActionRenameWallet = "rename_wallet"
	ActionExportWallet = "export_wallet"
)

// PersistContext describes the mutation being persisted for telemetry.
type PersistContext struct {
	Action      string
	WalletID    int
	SecureKeyID string
}

// RollbackFunc undoes a side effect that preceded a failed persist.
type RollbackFunc func(ctx context.Context) error

// Persister writes the wallet list. Every mutating service operation goes
// through Persist.
type Persister struct {
	store     wallet.Store
	telemetry *telemetry.Recorder
	logger    *logging.Logger
}

// NewPersister returns a persister over store. recorder and logger may be
// nil.
func NewPersister(store wallet.Store, recorder *telemetry.Recorder, logger *logging.Logger) *Persister {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Persister{
		store:     store,
		telemetry: recorder,
		logger:    logger.Component("wallet-keystore-persist"),
	}
}

// Persist saves ws. On failure it records write_persist_failure, runs
// rollback once if given, and returns a *PersistError. A rollback failure
// is logged and recorded but never replaces the persist error.
func (p *Persister) Persist(ctx context.Context, ws wallet.Wallets, pc PersistContext, rollback RollbackFunc) (wallet.Wallets, error) {
	start := time.Now()
	saved, err := p.store.Save(ctx, ws)
	metrics.RecordOperation(metrics.OpPersist, metrics.StatusOf(err), time.Since(start).Seconds())
	if err == nil {
		return saved, nil
	}

	p.telemetry.Record(ctx, telemetry.Params{
		Action:      telemetry.ActionWritePersistFailure,
		WalletID:    pc.WalletID,
		SecureKeyID: pc.SecureKeyID,
		Metadata: map[string]any{
			"action":  pc.Action,
			"message": err.Error(),
		},
	})

	persistErr := &PersistError{Action: pc.Action, Err: err}
	if rollback != nil {
		// The rollback must run even when ctx caused the failure.
		if rerr := rollback(context.WithoutCancel(ctx)); rerr != nil {
			persistErr.RollbackErr = rerr
			p.logger.WithContext(ctx).Warn("rollback failed after wallet persist failure",
				"action", pc.Action, "error", rerr)
			p.telemetry.Record(ctx, telemetry.Params{
				Action:      telemetry.ActionWritePersistFailure,
				WalletID:    pc.WalletID,
				SecureKeyID: pc.SecureKeyID,
				Metadata: map[string]any{
					"action":        pc.Action,
					"rollbackError": rerr.Error(),
				},
			})
		}
	}
	return nil, persistErr
}
