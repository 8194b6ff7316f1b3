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

package wallet

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
)

// ErrDecode is returned when a wallet list cannot be decoded. No partial
// list is ever returned alongside it.
var ErrDecode = errors.New("wallet: cannot decode wallet list")

// record is the on-disk shape of a wallet. Storage is written for every
// entry; lists written before the tag existed are discriminated by field
// presence.
type record struct {
	Storage               Mode               `json:"storage,omitempty"`
	ID                    int                `json:"id"`
	Name                  string             `json:"name"`
	Selected              bool               `json:"selected"`
	Keystore              *keystore.Keystore `json:"keystore,omitempty"`
	SecureKeyID           *string            `json:"secureKeyId,omitempty"`
	BiometricEnabled      *bool              `json:"biometricEnabled,omitempty"`
	LastSecureWriteAt     string             `json:"lastSecureWriteAt,omitempty"`
	LastSecureWriteStatus WriteStatus        `json:"lastSecureWriteStatus,omitempty"`
	ExportAcknowledgedAt  *string            `json:"exportAcknowledgedAt,omitempty"`
	LastExportAction      *ExportAction      `json:"lastExportAction,omitempty"`
	LastExportActionAt    *string            `json:"lastExportActionAt,omitempty"`
}

// Encode serialises ws as a JSON array.
func Encode(ws Wallets) ([]byte, error) {
	records := make([]record, 0, len(ws))
	for _, w := range ws {
		switch v := w.(type) {
		case LegacyWallet:
			records = append(records, record{
				Storage:  ModeLegacy,
				ID:       v.ID,
				Name:     v.Name,
				Selected: v.Selected,
				Keystore: v.Keystore,
			})
		case SecureWallet:
			id := v.SecureKeyID
			biometric := v.BiometricEnabled
			records = append(records, record{
				Storage:               ModeSecure,
				ID:                    v.ID,
				Name:                  v.Name,
				Selected:              v.Selected,
				SecureKeyID:           &id,
				BiometricEnabled:      &biometric,
				LastSecureWriteAt:     v.LastSecureWriteAt,
				LastSecureWriteStatus: v.LastSecureWriteStatus,
				ExportAcknowledgedAt:  v.ExportAcknowledgedAt,
				LastExportAction:      v.LastExportAction,
				LastExportActionAt:    v.LastExportActionAt,
			})
		default:
			return nil, fmt.Errorf("%w: unsupported wallet type %T", ErrInvalidWallet, w)
		}
	}
	return json.MarshalIndent(records, "", "  ")
}

// Decode parses a JSON wallet list and validates its invariants.
func Decode(data []byte) (Wallets, error) {
	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	ws := make(Wallets, 0, len(records))
	for i, r := range records {
		w, err := r.toWallet()
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrDecode, i, err)
		}
		ws = append(ws, w)
	}

	if err := ws.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return ws, nil
}

func (r record) mode() (Mode, error) {
	hasKeystore := r.Keystore != nil
	hasSecure := r.SecureKeyID != nil

	switch r.Storage {
	case ModeLegacy:
		if !hasKeystore || hasSecure {
			return "", errors.New("legacy wallet must carry a keystore and no secureKeyId")
		}
		return ModeLegacy, nil
	case ModeSecure:
		if !hasSecure || hasKeystore {
			return "", errors.New("secure wallet must carry a secureKeyId and no keystore")
		}
		return ModeSecure, nil
	case "":
		switch {
		case hasKeystore && hasSecure:
			return "", errors.New("wallet carries both keystore and secureKeyId")
		case hasKeystore:
			return ModeLegacy, nil
		case hasSecure:
			return ModeSecure, nil
		default:
			return "", errors.New("wallet carries neither keystore nor secureKeyId")
		}
	default:
		return "", fmt.Errorf("unknown storage mode %q", r.Storage)
	}
}

func (r record) toWallet() (Wallet, error) {
	mode, err := r.mode()
	if err != nil {
		return nil, err
	}
	meta := Metadata{ID: r.ID, Name: r.Name, Selected: r.Selected}

	if mode == ModeLegacy {
		if err := r.Keystore.Validate(); err != nil {
			return nil, err
		}
		return LegacyWallet{Metadata: meta, Keystore: r.Keystore}, nil
	}

	if *r.SecureKeyID == "" {
		return nil, errors.New("secureKeyId must not be empty")
	}
	if r.BiometricEnabled == nil {
		return nil, errors.New("secure wallet is missing biometricEnabled")
	}
	switch r.LastSecureWriteStatus {
	case WriteStatusSuccess, WriteStatusFailed:
	default:
		return nil, fmt.Errorf("invalid lastSecureWriteStatus %q", r.LastSecureWriteStatus)
	}
	if a := r.LastExportAction; a != nil {
		switch *a {
		case ExportInitiated, ExportCompleted, ExportCanceled:
		default:
			return nil, fmt.Errorf("invalid lastExportAction %q", *a)
		}
	}

	return SecureWallet{
		Metadata:              meta,
		SecureKeyID:           *r.SecureKeyID,
		BiometricEnabled:      *r.BiometricEnabled,
		LastSecureWriteAt:     r.LastSecureWriteAt,
		LastSecureWriteStatus: r.LastSecureWriteStatus,
		ExportAcknowledgedAt:  r.ExportAcknowledgedAt,
		LastExportAction:      r.LastExportAction,
		LastExportActionAt:    r.LastExportActionAt,
	}, nil
}
