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
	"errors"
	"fmt"
)

var (
	// ErrNoKeystore is returned when an operation needs an imported keystore.
	ErrNoKeystore = errors.New("keychain: keystore seems not to be imported")

	// ErrNotUnlocked is returned when an operation needs the wallet unlocked.
	ErrNotUnlocked = errors.New("keychain: keystore is locked")

	// ErrWalletNotFound is returned for ids missing from the wallet list.
	ErrWalletNotFound = errors.New("keychain: wallet not found")

	// ErrInvalidPayload is returned when secure storage holds something other
	// than a keystore.
	ErrInvalidPayload = errors.New("keychain: invalid secure storage payload")

	// ErrNoExporter is returned by ExportKeystore without an Exporter.
	ErrNoExporter = errors.New("keychain: no keystore exporter configured")

	// ErrNoLoader is returned by LoadKeystore without a Loader.
	ErrNoLoader = errors.New("keychain: no keystore loader configured")

	// ErrEmptyPassword is returned when a password is required.
	ErrEmptyPassword = errors.New("keychain: password cannot be empty")

	// ErrTooManyAttempts is returned when password attempts against a
	// wallet exceed the configured rate.
	ErrTooManyAttempts = errors.New("keychain: too many password attempts")
)

// UnlockError is returned by Unlock. Its message never carries the
// underlying cause; use errors.As / errors.Is to inspect it.
type UnlockError struct {
	WalletID int
	Cause    error
}

func (e *UnlockError) Error() string {
	return fmt.Sprintf("can't unlock wallet %d: could not decrypt phrase from keystore", e.WalletID)
}

func (e *UnlockError) Unwrap() error { return e.Cause }

// PersistError is returned when the wallet list could not be written.
// RollbackErr holds the outcome of the rollback for inspection only; it is
// never part of the error chain.
type PersistError struct {
	Action      string
	Err         error
	RollbackErr error
}

func (e *PersistError) Error() string {
	if e.Action == "" {
		return "could not persist wallets"
	}
	return fmt.Sprintf("could not persist wallets (%s)", e.Action)
}

func (e *PersistError) Unwrap() error { return e.Err }

func walletNotFound(id int) error {
	return fmt.Errorf("%w: wallet %d not found in memory", ErrWalletNotFound, id)
}
