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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-walletstore/pkg/biometric"
	"github.com/jeremyhahn/go-walletstore/pkg/securestore"
	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
	"github.com/jeremyhahn/go-walletstore/pkg/wallet"
)

type resolverEnv struct {
	resolver *Resolver
	secure   *fakeSecureStore
	events   *telemetry.Capture
	cache    *Cache
	recorder *telemetry.Recorder
}

func newResolverEnv(t *testing.T, bridge biometric.Bridge) *resolverEnv {
	t.Helper()
	env := &resolverEnv{
		secure: newFakeSecureStore(),
		events: telemetry.NewCapture(),
		cache:  NewCache(),
	}
	t.Cleanup(func() { _ = env.cache.Close() })
	env.recorder = telemetry.NewRecorder("1.0.0", telemetry.DeviceDesktop, env.events)
	env.resolver = NewResolver(ResolverConfig{
		Cache:     env.cache,
		Secure:    env.secure,
		Bridge:    bridge,
		Telemetry: env.recorder,
	})
	return env
}

func TestResolver_SecureReadIsCached(t *testing.T) {
	env := newResolverEnv(t, nil)
	ks := testKeystore(t, testPhrase, "pw")
	out, err := env.resolver.WriteNewWalletEntry(context.Background(), NewEntry{ID: 1, Name: "w1", Keystore: ks})
	require.NoError(t, err)
	require.Equal(t, wallet.ModeSecure, out.Mode)

	first, err := env.resolver.ResolveForWallet(context.Background(), out.Wallet)
	require.NoError(t, err)
	second, err := env.resolver.ResolveForWallet(context.Background(), out.Wallet)
	require.NoError(t, err)

	assert.Same(t, first, second)
	_, reads, _ := env.secure.counts()
	assert.Equal(t, 1, reads)

	ev, ok := env.events.Find(telemetry.ActionUnlockSuccess)
	require.True(t, ok)
	assert.Equal(t, telemetry.HashSecureKeyID("1.0.0", telemetry.DeviceDesktop, out.Wallet.(wallet.SecureWallet).SecureKeyID), ev.SecureKeyID)
}

func TestResolver_LegacyNeverTouchesSecureStorage(t *testing.T) {
	env := newResolverEnv(t, nil)
	ks := testKeystore(t, testPhrase, "pw")
	w := wallet.LegacyWallet{Metadata: wallet.Metadata{ID: 3, Name: "legacy"}, Keystore: ks}

	got, err := env.resolver.ResolveForWallet(context.Background(), w)
	require.NoError(t, err)
	assert.Same(t, ks, got)

	writes, reads, removes := env.secure.counts()
	assert.Zero(t, writes+reads+removes)

	require.NoError(t, env.resolver.RemoveSecureEntryIfNeeded(context.Background(), w))
	_, _, removes = env.secure.counts()
	assert.Zero(t, removes)
	assert.Empty(t, env.events.Events())
}

func TestResolver_ResolveByID(t *testing.T) {
	env := newResolverEnv(t, nil)
	ks := testKeystore(t, testPhrase, "pw")
	ws := wallet.Wallets{wallet.LegacyWallet{Metadata: wallet.Metadata{ID: 1, Name: "w1"}, Keystore: ks}}

	got, err := env.resolver.ResolveByID(context.Background(), ws, 1)
	require.NoError(t, err)
	assert.Same(t, ks, got)

	_, err = env.resolver.ResolveByID(context.Background(), ws, 9)
	assert.ErrorIs(t, err, ErrWalletNotFound)
	assert.Contains(t, err.Error(), "wallet 9 not found in memory")

	// Cached entries resolve even when missing from the list.
	got, err = env.resolver.ResolveByID(context.Background(), nil, 1)
	require.NoError(t, err)
	assert.Same(t, ks, got)
}

func TestResolver_WriteWithoutSecureStorage(t *testing.T) {
	events := telemetry.NewCapture()
	r := NewResolver(ResolverConfig{Telemetry: telemetry.NewRecorder("1.0.0", telemetry.DeviceDesktop, events)})
	assert.False(t, r.HasSecureStorage())

	ks := testKeystore(t, testPhrase, "pw")
	out, err := r.WriteNewWalletEntry(context.Background(), NewEntry{ID: 1, Name: "w1", Keystore: ks})
	require.NoError(t, err)
	assert.Equal(t, wallet.ModeLegacy, out.Mode)
	assert.Nil(t, out.Rollback)
	assert.False(t, out.Wallet.Meta().Selected)
	assert.Empty(t, events.Events())

	_, err = r.ResolveForWallet(context.Background(), wallet.SecureWallet{
		Metadata:    wallet.Metadata{ID: 2, Name: "w2"},
		SecureKeyID: "asgardex-keystore-2",
	})
	assert.ErrorIs(t, err, securestore.ErrUnavailable)
}

func TestResolver_WriteFailure(t *testing.T) {
	tests := []struct {
		name       string
		policy     biometric.Policy
		wantBlock  bool
		wantAction telemetry.Action
	}{
		{
			name:       "desktop falls back to legacy",
			policy:     biometric.Policy{SecureStorageRequired: true},
			wantAction: telemetry.ActionWriteFailure,
		},
		{
			name:       "mobile without requirement falls back to legacy",
			policy:     biometric.Policy{Mobile: true},
			wantAction: telemetry.ActionWriteFailure,
		},
		{
			name:       "mobile with requirement blocks",
			policy:     biometric.Policy{SecureStorageRequired: true, Mobile: true},
			wantBlock:  true,
			wantAction: telemetry.ActionOnboardingBlocked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newResolverEnv(t, biometric.NewInert(tt.policy))
			env.secure.writeErr = errors.New("keychain unavailable")

			ks := testKeystore(t, testPhrase, "pw")
			out, err := env.resolver.WriteNewWalletEntry(context.Background(), NewEntry{ID: 5, Name: "w5", Keystore: ks})

			ev, ok := env.events.Find(tt.wantAction)
			require.True(t, ok)

			if tt.wantBlock {
				var reqErr *securestore.RequiredError
				require.ErrorAs(t, err, &reqErr)
				assert.True(t, reqErr.Retryable)
				assert.Equal(t, "secure_storage_required", ev.Metadata["reason"])
				assert.Equal(t, "mobile", ev.Metadata["platform"])
				assert.Nil(t, out.Wallet)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, wallet.ModeLegacy, out.Mode)
			lw, ok := out.Wallet.(wallet.LegacyWallet)
			require.True(t, ok)
			assert.Same(t, ks, lw.Keystore)
			assert.Equal(t, "keychain unavailable", ev.Metadata["reason"])
		})
	}
}

func TestResolver_WriteSuccessAndRollback(t *testing.T) {
	env := newResolverEnv(t, nil)
	ks := testKeystore(t, testPhrase, "pw")

	out, err := env.resolver.WriteNewWalletEntry(context.Background(), NewEntry{
		ID: 2, Name: "w2", Keystore: ks, BiometricEnabled: true,
	})
	require.NoError(t, err)

	sw, ok := out.Wallet.(wallet.SecureWallet)
	require.True(t, ok)
	assert.False(t, sw.Selected)
	assert.False(t, sw.BiometricEnabled, "inert bridge never opts in")
	assert.Equal(t, wallet.WriteStatusSuccess, sw.LastSecureWriteStatus)
	assert.Equal(t, "2025-01-01T00:00:00Z", sw.LastSecureWriteAt)
	assert.False(t, env.secure.lastWrite.BiometricRequired)

	ev, ok := env.events.Find(telemetry.ActionWriteSuccess)
	require.True(t, ok)
	assert.Equal(t, "false", ev.Metadata["biometricRequired"])

	require.NotNil(t, out.Rollback)
	require.NoError(t, out.Rollback(context.Background()))
	ids, err := env.secure.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)

	env.secure.removeErr = errors.New("gone")
	assert.Error(t, out.Rollback(context.Background()))
	_, ok = env.events.Find(telemetry.ActionRemoveFailure)
	assert.True(t, ok)
}

func TestResolver_BiometricOptIn(t *testing.T) {
	available := func(context.Context) (biometric.Plugin, error) {
		return biometric.PluginFunc(func(context.Context) (biometric.Status, error) {
			return biometric.Status{IsAvailable: true}, nil
		}), nil
	}
	notEnrolled := func(context.Context) (biometric.Plugin, error) {
		return biometric.PluginFunc(func(context.Context) (biometric.Status, error) {
			return biometric.Status{ErrorCode: string(biometric.ReasonNotEnrolled)}, nil
		}), nil
	}
	policy := biometric.Policy{BiometricEnabled: true, Mobile: true}

	t.Run("available", func(t *testing.T) {
		bridge := biometric.NewMobileBridge(policy, available)
		env := newResolverEnv(t, bridge)
		out, err := env.resolver.WriteNewWalletEntry(context.Background(), NewEntry{
			ID: 1, Name: "w1", Keystore: testKeystore(t, testPhrase, "pw"), BiometricEnabled: true,
		})
		require.NoError(t, err)
		assert.True(t, env.secure.lastWrite.BiometricRequired)
		assert.True(t, out.Wallet.(wallet.SecureWallet).BiometricEnabled)
		assert.Nil(t, bridge.Notices().Get())
	})

	t.Run("not enrolled", func(t *testing.T) {
		bridge := biometric.NewMobileBridge(policy, notEnrolled)
		env := newResolverEnv(t, bridge)
		out, err := env.resolver.WriteNewWalletEntry(context.Background(), NewEntry{
			ID: 1, Name: "w1", Keystore: testKeystore(t, testPhrase, "pw"), BiometricEnabled: true,
		})
		require.NoError(t, err)
		assert.False(t, env.secure.lastWrite.BiometricRequired)
		assert.False(t, out.Wallet.(wallet.SecureWallet).BiometricEnabled)

		notice := bridge.Notices().Get()
		require.NotNil(t, notice)
		assert.Equal(t, biometric.ReasonNotEnrolled, notice.Reason)
		assert.Equal(t, biometric.SurfaceOnboarding, notice.Surface)
	})
}

func TestResolver_Downgrade(t *testing.T) {
	bridge := biometric.NewMobileBridge(biometric.Policy{BiometricEnabled: true, Mobile: true}, nil)
	env := newResolverEnv(t, bridge)
	env.secure.readErr = &securestore.DowngradeError{
		SecureKeyID: "asgardex-keystore-7",
		Reason:      biometric.ReasonNotEnrolled,
	}
	w := wallet.SecureWallet{Metadata: wallet.Metadata{ID: 7, Name: "w7"}, SecureKeyID: "asgardex-keystore-7"}

	_, err := env.resolver.ResolveForWallet(context.Background(), w)
	d, ok := securestore.AsDowngrade(err)
	require.True(t, ok)
	assert.Equal(t, biometric.ReasonNotEnrolled, d.Reason)

	notice := bridge.Notices().Get()
	require.NotNil(t, notice)
	assert.Equal(t, biometric.SurfaceUnlock, notice.Surface)
	assert.Equal(t, "asgardex-keystore-7", notice.SecureKeyID)

	ev, ok := env.events.Find(telemetry.ActionBiometricDowngradeConsumed)
	require.True(t, ok)
	assert.Equal(t, string(biometric.ReasonNotEnrolled), ev.Metadata["reason"])
	_, ok = env.events.Find(telemetry.ActionUnlockFailure)
	assert.False(t, ok)
	assert.Equal(t, 0, env.cache.Len())
}

func TestResolver_UnlockFailureIsRedacted(t *testing.T) {
	env := newResolverEnv(t, nil)
	env.secure.readErr = errors.New("keychain item not found")
	w := wallet.SecureWallet{Metadata: wallet.Metadata{ID: 8, Name: "w8"}, SecureKeyID: "asgardex-keystore-8"}

	_, err := env.resolver.ResolveForWallet(context.Background(), w)
	require.Error(t, err)

	ev, ok := env.events.Find(telemetry.ActionUnlockFailure)
	require.True(t, ok)
	assert.Equal(t, telemetry.RedactedMarker, ev.Metadata["raw"])
	assert.Equal(t, "keychain item not found", ev.Metadata["message"])
	assert.NotEmpty(t, ev.SecureKeyID)
	assert.NotEqual(t, "asgardex-keystore-8", ev.SecureKeyID)
}

func TestResolver_InvalidPayload(t *testing.T) {
	env := newResolverEnv(t, nil)
	env.secure.entries["asgardex-keystore-9"] = securestore.Payload{Type: "note"}
	w := wallet.SecureWallet{Metadata: wallet.Metadata{ID: 9, Name: "w9"}, SecureKeyID: "asgardex-keystore-9"}

	_, err := env.resolver.ResolveForWallet(context.Background(), w)
	assert.ErrorIs(t, err, ErrInvalidPayload)
	assert.Contains(t, err.Error(), "must contain an encrypted keystore")
	assert.Equal(t, 0, env.cache.Len())
}

func TestResolver_RemoveSecureEntry(t *testing.T) {
	env := newResolverEnv(t, nil)
	out, err := env.resolver.WriteNewWalletEntry(context.Background(), NewEntry{
		ID: 1, Name: "w1", Keystore: testKeystore(t, testPhrase, "pw"),
	})
	require.NoError(t, err)

	require.NoError(t, env.resolver.RemoveSecureEntryIfNeeded(context.Background(), out.Wallet))
	_, ok := env.events.Find(telemetry.ActionRemove)
	assert.True(t, ok)

	env.secure.removeErr = errors.New("denied")
	assert.Error(t, env.resolver.RemoveSecureEntryIfNeeded(context.Background(), out.Wallet))
	ev, ok := env.events.Find(telemetry.ActionRemoveFailure)
	require.True(t, ok)
	assert.Equal(t, "denied", ev.Metadata["message"])

	noSecure := NewResolver(ResolverConfig{Telemetry: env.recorder})
	env.events.Reset()
	assert.ErrorIs(t, noSecure.RemoveSecureEntryIfNeeded(context.Background(), out.Wallet), securestore.ErrUnavailable)
	ev, ok = env.events.Find(telemetry.ActionRemoveFailure)
	require.True(t, ok)
	assert.Equal(t, "Secure keystore storage is not available", ev.Metadata["message"])
}
