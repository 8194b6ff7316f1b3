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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureEntryPath(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		expect string
	}{
		{
			name:   "prefixed id",
			id:     "asgardex-keystore-1234",
			expect: "secure/asgardex-keystore-1234.json",
		},
		{
			name:   "uuid id",
			id:     "550e8400-e29b-41d4-a716-446655440000",
			expect: "secure/550e8400-e29b-41d4-a716-446655440000.json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, SecureEntryPath(tt.id))
		})
	}
}

func TestLegacyBackupKey(t *testing.T) {
	assert.Equal(t, "keystore-legacy-1700000000000.json", LegacyBackupKey(1700000000000))
}

func TestListSecureEntries(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Put(SecureEntryPath("one"), []byte("{}"), nil))
	require.NoError(t, backend.Put(SecureEntryPath("two"), []byte("{}"), nil))
	require.NoError(t, backend.Put("secure/nested/three.json", []byte("{}"), nil))
	require.NoError(t, backend.Put("secure/notes.txt", []byte("{}"), nil))
	require.NoError(t, backend.Put(WalletListKey, []byte("[]"), nil))

	ids, err := ListSecureEntries(backend)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, ids)
}

func TestMove(t *testing.T) {
	backend := NewMemory()
	require.NoError(t, backend.Put(LegacyKeystoreKey, []byte("legacy"), nil))

	require.NoError(t, Move(backend, LegacyKeystoreKey, LegacyBackupKey(42)))

	exists, err := backend.Exists(LegacyKeystoreKey)
	require.NoError(t, err)
	assert.False(t, exists)

	data, err := backend.Get(LegacyBackupKey(42))
	require.NoError(t, err)
	assert.Equal(t, "legacy", string(data))

	assert.ErrorIs(t, Move(backend, "missing", "dst"), ErrNotFound)
}
