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
	"fmt"
	"strconv"

	"github.com/jeremyhahn/go-walletstore/pkg/biometric"
	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
	"github.com/jeremyhahn/go-walletstore/pkg/logging"
	"github.com/jeremyhahn/go-walletstore/pkg/securestore"
	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
	"github.com/jeremyhahn/go-walletstore/pkg/wallet"
)

// ResolverConfig holds the collaborators of a Resolver. Secure may be nil,
// in which case every wallet uses legacy storage.
type ResolverConfig struct {
	Cache     *Cache
	Secure    securestore.Store
	Bridge    biometric.Bridge
	Telemetry *telemetry.Recorder
	Logger    *logging.Logger
}

// Resolver maps wallets to their encrypted keystore, wherever it is stored.
type Resolver struct {
	cache     *Cache
	secure    securestore.Store
	bridge    biometric.Bridge
	telemetry *telemetry.Recorder
	logger    *logging.Logger
}

func NewResolver(cfg ResolverConfig) *Resolver {
	r := &Resolver{
		cache:     cfg.Cache,
		secure:    cfg.Secure,
		bridge:    cfg.Bridge,
		telemetry: cfg.Telemetry,
		logger:    cfg.Logger,
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	if r.bridge == nil {
		r.bridge = biometric.NewInert(biometric.Policy{})
	}
	if r.logger == nil {
		r.logger = logging.NewDiscard()
	}
	r.logger = r.logger.Component("wallet-keystore")
	return r
}

// HasSecureStorage reports whether a secure backend is configured.
func (r *Resolver) HasSecureStorage() bool { return r.secure != nil }

// ResolveForWallet returns the encrypted keystore of w. A cached keystore is
// returned without I/O. A downgraded biometric read notifies the bridge and
// returns the *securestore.DowngradeError; it never succeeds silently.
func (r *Resolver) ResolveForWallet(ctx context.Context, w wallet.Wallet) (*keystore.Keystore, error) {
	if w == nil {
		return nil, fmt.Errorf("%w: nil wallet", ErrWalletNotFound)
	}
	id := w.Meta().ID
	if ks, ok := r.cache.Get(id); ok {
		return ks, nil
	}

	switch v := w.(type) {
	case wallet.LegacyWallet:
		if v.Keystore == nil {
			return nil, fmt.Errorf("%w: wallet %d has no keystore", wallet.ErrInvalidWallet, id)
		}
		r.cache.Set(id, v.Keystore)
		return v.Keystore, nil
	case wallet.SecureWallet:
		return r.resolveSecure(ctx, v)
	default:
		return nil, fmt.Errorf("%w: unsupported wallet type %T", wallet.ErrInvalidWallet, w)
	}
}

func (r *Resolver) resolveSecure(ctx context.Context, w wallet.SecureWallet) (*keystore.Keystore, error) {
	if r.secure == nil {
		err := fmt.Errorf("%w: secure keystore storage is not available", securestore.ErrUnavailable)
		r.recordUnlockFailure(ctx, w, err)
		return nil, err
	}

	payload, err := r.secure.Read(ctx, w.SecureKeyID)
	if err != nil {
		if d, ok := securestore.AsDowngrade(err); ok {
			r.bridge.EmitNotice(biometric.Notice{
				Reason:      d.Reason,
				Surface:     biometric.SurfaceUnlock,
				SecureKeyID: d.SecureKeyID,
			})
			r.telemetry.Record(ctx, telemetry.Params{
				Action:      telemetry.ActionBiometricDowngradeConsumed,
				WalletID:    w.ID,
				SecureKeyID: d.SecureKeyID,
				Metadata:    map[string]any{"reason": string(d.Reason)},
			})
			return nil, err
		}
		r.recordUnlockFailure(ctx, w, err)
		return nil, err
	}

	r.telemetry.Record(ctx, telemetry.Params{
		Action:      telemetry.ActionUnlockSuccess,
		WalletID:    w.ID,
		SecureKeyID: w.SecureKeyID,
	})
	if payload.Type != securestore.PayloadTypeKeystore || payload.Keystore == nil {
		return nil, fmt.Errorf("%w: secure storage payload for wallet %d must contain an encrypted keystore",
			ErrInvalidPayload, w.ID)
	}
	r.cache.Set(w.ID, payload.Keystore)
	return payload.Keystore, nil
}

func (r *Resolver) recordUnlockFailure(ctx context.Context, w wallet.SecureWallet, err error) {
	r.telemetry.Record(ctx, telemetry.Params{
		Action:      telemetry.ActionUnlockFailure,
		WalletID:    w.ID,
		SecureKeyID: w.SecureKeyID,
		Metadata: map[string]any{
			"message": err.Error(),
			"raw":     err,
		},
	})
}

// ResolveByID resolves the wallet with id from ws, consulting the cache
// first.
func (r *Resolver) ResolveByID(ctx context.Context, ws wallet.Wallets, id int) (*keystore.Keystore, error) {
	if ks, ok := r.cache.Get(id); ok {
		return ks, nil
	}
	w, ok := ws.Find(id)
	if !ok {
		return nil, walletNotFound(id)
	}
	return r.ResolveForWallet(ctx, w)
}

// NewEntry describes a wallet about to be created.
type NewEntry struct {
	ID               int
	Name             string
	Keystore         *keystore.Keystore
	BiometricEnabled bool
}

// WriteOutcome is the result of WriteNewWalletEntry. Rollback is set only
// when something was written to secure storage.
type WriteOutcome struct {
	Wallet   wallet.Wallet
	Mode     wallet.Mode
	Rollback RollbackFunc
}

// WriteNewWalletEntry stores a new wallet's keystore. Without a secure
// backend it returns a legacy wallet and touches nothing. A failed secure
// write returns *securestore.RequiredError when the platform policy
// requires secure storage and otherwise falls back to a legacy wallet.
// The returned wallet is never selected.
func (r *Resolver) WriteNewWalletEntry(ctx context.Context, e NewEntry) (WriteOutcome, error) {
	meta := wallet.Metadata{ID: e.ID, Name: e.Name}
	legacy := WriteOutcome{
		Wallet: wallet.LegacyWallet{Metadata: meta, Keystore: e.Keystore},
		Mode:   wallet.ModeLegacy,
	}
	if r.secure == nil {
		return legacy, nil
	}

	biometricEnabled := r.bridge.ResolveOptIn(ctx, e.BiometricEnabled)
	result, err := r.secure.Write(ctx, securestore.WriteParams{
		Payload:           securestore.KeystorePayload(e.Keystore),
		BiometricRequired: biometricEnabled,
	})
	if err != nil {
		if r.bridge.ShouldBlockOnSecureFailure() {
			reqErr := securestore.NewRequiredError(err)
			r.telemetry.Record(ctx, telemetry.Params{
				Action:   telemetry.ActionOnboardingBlocked,
				WalletID: e.ID,
				Metadata: map[string]any{
					"reason":   "secure_storage_required",
					"message":  reqErr.Error(),
					"platform": "mobile",
				},
			})
			return WriteOutcome{}, reqErr
		}

		writeErr := securestore.NewWriteError(err)
		r.telemetry.Record(ctx, telemetry.Params{
			Action:   telemetry.ActionWriteFailure,
			WalletID: e.ID,
			Metadata: map[string]any{
				"message": writeErr.Error(),
				"reason":  securestore.FailureReason(writeErr),
			},
		})
		r.logger.WithContext(ctx).Warn("secure storage write failed, falling back to legacy storage",
			"wallet_id", e.ID, "error", writeErr)
		return legacy, nil
	}

	r.telemetry.Record(ctx, telemetry.Params{
		Action:      telemetry.ActionWriteSuccess,
		WalletID:    e.ID,
		SecureKeyID: result.SecureKeyID,
		Metadata:    map[string]any{"biometricRequired": strconv.FormatBool(biometricEnabled)},
	})

	secureKeyID := result.SecureKeyID
	return WriteOutcome{
		Wallet: wallet.SecureWallet{
			Metadata:              meta,
			SecureKeyID:           secureKeyID,
			BiometricEnabled:      biometricEnabled,
			LastSecureWriteAt:     result.UpdatedAt,
			LastSecureWriteStatus: wallet.WriteStatusSuccess,
		},
		Mode: wallet.ModeSecure,
		Rollback: func(ctx context.Context) error {
			if err := r.secure.Remove(ctx, secureKeyID); err != nil {
				r.telemetry.Record(ctx, telemetry.Params{
					Action:      telemetry.ActionRemoveFailure,
					WalletID:    e.ID,
					SecureKeyID: secureKeyID,
					Metadata:    map[string]any{"message": err.Error()},
				})
				return err
			}
			return nil
		},
	}, nil
}

// RemoveSecureEntryIfNeeded deletes the secure entry of a secure wallet.
// The outcome is recorded in telemetry and returned for inspection only;
// callers must not fail wallet removal on it.
func (r *Resolver) RemoveSecureEntryIfNeeded(ctx context.Context, w wallet.Wallet) error {
	sw, ok := w.(wallet.SecureWallet)
	if !ok {
		return nil
	}

	if r.secure == nil {
		err := fmt.Errorf("%w: secure keystore storage is not available", securestore.ErrUnavailable)
		r.telemetry.Record(ctx, telemetry.Params{
			Action:      telemetry.ActionRemoveFailure,
			WalletID:    sw.ID,
			SecureKeyID: sw.SecureKeyID,
			Metadata:    map[string]any{"message": "Secure keystore storage is not available"},
		})
		return err
	}

	if err := r.secure.Remove(ctx, sw.SecureKeyID); err != nil {
		r.telemetry.Record(ctx, telemetry.Params{
			Action:      telemetry.ActionRemoveFailure,
			WalletID:    sw.ID,
			SecureKeyID: sw.SecureKeyID,
			Metadata:    map[string]any{"message": err.Error()},
		})
		return err
	}
	r.telemetry.Record(ctx, telemetry.Params{
		Action:      telemetry.ActionRemove,
		WalletID:    sw.ID,
		SecureKeyID: sw.SecureKeyID,
	})
	return nil
}
