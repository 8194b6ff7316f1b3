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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
)

func testKeystore(t *testing.T) *keystore.Keystore {
	t.Helper()
	ks, err := keystore.Encrypt("test phrase", "pw", keystore.WithIterations(4))
	require.NoError(t, err)
	return ks
}

func legacy(t *testing.T, id int, name string, selected bool) LegacyWallet {
	return LegacyWallet{Metadata: Metadata{ID: id, Name: name, Selected: selected}, Keystore: testKeystore(t)}
}

func secure(id int, name string, selected bool) SecureWallet {
	return SecureWallet{
		Metadata:              Metadata{ID: id, Name: name, Selected: selected},
		SecureKeyID:           "asgardex-keystore-" + name,
		LastSecureWriteAt:     "2025-01-01T00:00:00Z",
		LastSecureWriteStatus: WriteStatusSuccess,
	}
}

func TestWallets_Selection(t *testing.T) {
	ws := Wallets{legacy(t, 1, "a", true), secure(2, "b", false), secure(3, "c", false)}

	selected, ok := ws.Selected()
	require.True(t, ok)
	assert.Equal(t, 1, selected.Meta().ID)

	moved := ws.WithSelected(3)
	selected, ok = moved.Selected()
	require.True(t, ok)
	assert.Equal(t, 3, selected.Meta().ID)
	require.NoError(t, moved.Validate())

	// receiver untouched
	selected, _ = ws.Selected()
	assert.Equal(t, 1, selected.Meta().ID)

	_, ok = ws.Unselected().Selected()
	assert.False(t, ok)
}

func TestWallets_WithMetaKeepsVariant(t *testing.T) {
	ws := Wallets{legacy(t, 1, "a", false), secure(2, "b", false)}.Renamed(2, "renamed")

	w, ok := ws.Find(2)
	require.True(t, ok)
	sw, isSecure := w.(SecureWallet)
	require.True(t, isSecure)
	assert.Equal(t, "renamed", sw.Name)
	assert.Equal(t, "asgardex-keystore-b", sw.SecureKeyID)

	w, _ = ws.Find(1)
	assert.Equal(t, ModeLegacy, w.Mode())
}

func TestWallets_AppendWithoutLast(t *testing.T) {
	ws := Wallets{legacy(t, 1, "a", false)}
	grown := ws.Append(secure(2, "b", true))
	assert.Len(t, ws, 1)
	assert.Equal(t, []int{1, 2}, grown.IDs())

	last, ok := grown.Last()
	require.True(t, ok)
	assert.Equal(t, 2, last.Meta().ID)

	shrunk := grown.Without(2)
	assert.Equal(t, []int{1}, shrunk.IDs())

	_, ok = Wallets{}.Last()
	assert.False(t, ok)

	_, ok = grown.Find(9)
	assert.False(t, ok)
}

func TestWallets_NextID(t *testing.T) {
	assert.Equal(t, 1, Wallets{}.NextID())
	assert.Equal(t, 6, Wallets{secure(5, "x", false), secure(2, "y", false)}.NextID())
}

func TestWallets_HasName(t *testing.T) {
	ws := Wallets{secure(1, "main", false), secure(2, "spare", false)}
	assert.True(t, ws.HasName("main", 0))
	assert.False(t, ws.HasName("main", 1))
	assert.False(t, ws.HasName("other", 0))
}

func TestWallets_CountByModeAndUI(t *testing.T) {
	ws := Wallets{legacy(t, 1, "a", true), secure(2, "b", false), secure(3, "c", false)}
	assert.Equal(t, map[Mode]int{ModeLegacy: 1, ModeSecure: 2}, ws.CountByMode())
	assert.Equal(t, []Metadata{{1, "a", true}, {2, "b", false}, {3, "c", false}}, ws.UI())
}

func TestWallets_Validate(t *testing.T) {
	tests := []struct {
		name    string
		wallets Wallets
		want    error
	}{
		{"empty", Wallets{}, nil},
		{"valid", Wallets{secure(1, "a", true), secure(2, "b", false)}, nil},
		{"zero id", Wallets{secure(0, "a", false)}, ErrInvalidID},
		{"duplicate id", Wallets{secure(1, "a", false), secure(1, "b", false)}, ErrDuplicateID},
		{"duplicate name", Wallets{secure(1, "a", false), secure(2, "a", false)}, ErrDuplicateName},
		{"empty name", Wallets{secure(1, "", false)}, ErrInvalidName},
		{"two selected", Wallets{secure(1, "a", true), secure(2, "b", true)}, ErrMultipleSelected},
		{"legacy without keystore", Wallets{LegacyWallet{Metadata: Metadata{ID: 1, Name: "a"}}}, ErrInvalidWallet},
		{"secure without id", Wallets{SecureWallet{Metadata: Metadata{ID: 1, Name: "a"}}}, ErrInvalidWallet},
		{"nil entry", Wallets{nil}, ErrInvalidWallet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.wallets.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDefaultName(t *testing.T) {
	assert.Equal(t, "Wallet 1", DefaultName(1))
}
