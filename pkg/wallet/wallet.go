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

// Package wallet defines the persisted wallet list: the legacy and secure
// wallet variants, list invariants, the JSON codec and the list store.
package wallet

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
	"github.com/jeremyhahn/go-walletstore/pkg/validation"
)

// Mode is the storage mode of a wallet's secret.
type Mode string

const (
	// ModeLegacy wallets embed their encrypted keystore in the wallet list.
	ModeLegacy Mode = "legacy"
	// ModeSecure wallets reference an entry in secure storage.
	ModeSecure Mode = "secure"
)

// WriteStatus is the outcome of the last secure storage write.
type WriteStatus string

const (
	WriteStatusSuccess WriteStatus = "success"
	WriteStatusFailed  WriteStatus = "failed"
)

// ExportAction records the last step of the backup flow.
type ExportAction string

const (
	ExportInitiated ExportAction = "initiated"
	ExportCompleted ExportAction = "completed"
	ExportCanceled  ExportAction = "canceled"
)

var (
	ErrDuplicateID      = errors.New("wallet: duplicate wallet id")
	ErrDuplicateName    = errors.New("wallet: duplicate wallet name")
	ErrInvalidID        = errors.New("wallet: invalid wallet id")
	ErrInvalidName      = errors.New("wallet: invalid wallet name")
	ErrMultipleSelected = errors.New("wallet: more than one wallet selected")
	ErrInvalidWallet    = errors.New("wallet: invalid wallet")
	ErrNotFound         = errors.New("wallet: not found")
)

// Metadata is shared by every wallet variant.
type Metadata struct {
	ID       int
	Name     string
	Selected bool
}

// Wallet is a wallet list entry: either LegacyWallet or SecureWallet.
type Wallet interface {
	Meta() Metadata
	Mode() Mode
	// WithMeta returns a copy of the wallet carrying m.
	WithMeta(m Metadata) Wallet
	validate() error
}

// LegacyWallet embeds its encrypted keystore.
type LegacyWallet struct {
	Metadata
	Keystore *keystore.Keystore
}

func (w LegacyWallet) Meta() Metadata { return w.Metadata }
func (w LegacyWallet) Mode() Mode     { return ModeLegacy }

func (w LegacyWallet) WithMeta(m Metadata) Wallet {
	w.Metadata = m
	return w
}

func (w LegacyWallet) validate() error {
	if w.Keystore == nil {
		return fmt.Errorf("%w: wallet %d has no keystore", ErrInvalidWallet, w.ID)
	}
	return nil
}

// SecureWallet references a secure storage entry.
type SecureWallet struct {
	Metadata
	SecureKeyID           string
	BiometricEnabled      bool
	LastSecureWriteAt     string
	LastSecureWriteStatus WriteStatus
	ExportAcknowledgedAt  *string
	LastExportAction      *ExportAction
	LastExportActionAt    *string
}

func (w SecureWallet) Meta() Metadata { return w.Metadata }
func (w SecureWallet) Mode() Mode     { return ModeSecure }

func (w SecureWallet) WithMeta(m Metadata) Wallet {
	w.Metadata = m
	return w
}

func (w SecureWallet) validate() error {
	if w.SecureKeyID == "" {
		return fmt.Errorf("%w: wallet %d has no secure key id", ErrInvalidWallet, w.ID)
	}
	return nil
}

// Wallets is the ordered wallet list. Order is display order. Every method
// returns a new list and leaves the receiver untouched.
type Wallets []Wallet

// Find returns the wallet with the given id.
func (ws Wallets) Find(id int) (Wallet, bool) {
	for _, w := range ws {
		if w.Meta().ID == id {
			return w, true
		}
	}
	return nil, false
}

// Selected returns the first selected wallet.
func (ws Wallets) Selected() (Wallet, bool) {
	for _, w := range ws {
		if w.Meta().Selected {
			return w, true
		}
	}
	return nil, false
}

// Last returns the last wallet in the list.
func (ws Wallets) Last() (Wallet, bool) {
	if len(ws) == 0 {
		return nil, false
	}
	return ws[len(ws)-1], true
}

// WithSelected marks exactly the wallet with id as selected.
func (ws Wallets) WithSelected(id int) Wallets {
	return ws.mapMeta(func(m Metadata) Metadata {
		m.Selected = m.ID == id
		return m
	})
}

// Unselected clears every selection.
func (ws Wallets) Unselected() Wallets {
	return ws.mapMeta(func(m Metadata) Metadata {
		m.Selected = false
		return m
	})
}

// Renamed sets the name of the wallet with id.
func (ws Wallets) Renamed(id int, name string) Wallets {
	return ws.mapMeta(func(m Metadata) Metadata {
		if m.ID == id {
			m.Name = name
		}
		return m
	})
}

// Without drops the wallet with id.
func (ws Wallets) Without(id int) Wallets {
	out := make(Wallets, 0, len(ws))
	for _, w := range ws {
		if w.Meta().ID != id {
			out = append(out, w)
		}
	}
	return out
}

// Append returns the list with w added at the end.
func (ws Wallets) Append(w Wallet) Wallets {
	out := make(Wallets, 0, len(ws)+1)
	out = append(out, ws...)
	return append(out, w)
}

// IDs returns the wallet ids in list order.
func (ws Wallets) IDs() []int {
	ids := make([]int, len(ws))
	for i, w := range ws {
		ids[i] = w.Meta().ID
	}
	return ids
}

// NextID returns one more than the highest id in the list.
func (ws Wallets) NextID() int {
	next := 1
	for _, w := range ws {
		if id := w.Meta().ID; id >= next {
			next = id + 1
		}
	}
	return next
}

// HasName reports whether a wallet other than exceptID carries name.
func (ws Wallets) HasName(name string, exceptID int) bool {
	for _, w := range ws {
		if m := w.Meta(); m.Name == name && m.ID != exceptID {
			return true
		}
	}
	return false
}

// CountByMode returns the number of wallets per storage mode.
func (ws Wallets) CountByMode() map[Mode]int {
	counts := map[Mode]int{ModeLegacy: 0, ModeSecure: 0}
	for _, w := range ws {
		counts[w.Mode()]++
	}
	return counts
}

// UI returns the metadata of every wallet, without secrets.
func (ws Wallets) UI() []Metadata {
	out := make([]Metadata, len(ws))
	for i, w := range ws {
		out[i] = w.Meta()
	}
	return out
}

// Validate checks the list invariants: positive unique ids, valid unique
// names, at most one selected wallet and a well-formed variant per entry.
func (ws Wallets) Validate() error {
	ids := make(map[int]struct{}, len(ws))
	names := make(map[string]struct{}, len(ws))
	selected := 0

	for _, w := range ws {
		if w == nil {
			return fmt.Errorf("%w: nil entry", ErrInvalidWallet)
		}
		m := w.Meta()
		if err := validation.ValidateWalletID(m.ID); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidID, err)
		}
		if err := validation.ValidateWalletName(m.Name); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidName, err)
		}
		if _, dup := ids[m.ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, m.ID)
		}
		if _, dup := names[m.Name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateName, m.Name)
		}
		ids[m.ID] = struct{}{}
		names[m.Name] = struct{}{}
		if m.Selected {
			selected++
		}
		if err := w.validate(); err != nil {
			return err
		}
	}

	if selected > 1 {
		return ErrMultipleSelected
	}
	return nil
}

func (ws Wallets) mapMeta(fn func(Metadata) Metadata) Wallets {
	out := make(Wallets, len(ws))
	for i, w := range ws {
		out[i] = w.WithMeta(fn(w.Meta()))
	}
	return out
}

// DefaultName is the name given to a wallet created without one.
func DefaultName(id int) string {
	return fmt.Sprintf("Wallet %d", id)
}
