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

package securestore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/jeremyhahn/go-walletstore/pkg/biometric"
	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
	"github.com/jeremyhahn/go-walletstore/pkg/storage"
	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
)

func testKeystore(t *testing.T) *keystore.Keystore {
	t.Helper()
	ks, err := keystore.Encrypt("test phrase words", "pw", keystore.WithIterations(4))
	require.NoError(t, err)
	return ks
}

type storeFactory func(t *testing.T, opts ...Option) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"file": func(t *testing.T, opts ...Option) Store {
			return NewFileStore(storage.NewMemory(), opts...)
		},
		"keyring": func(t *testing.T, opts ...Option) Store {
			keyring.MockInit()
			return NewKeyringStore("walletstore-test", opts...)
		},
	}
}

func TestStore_WriteRead(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			ks := testKeystore(t)

			res, err := s.Write(ctx, WriteParams{Payload: KeystorePayload(ks)})
			require.NoError(t, err)
			assert.Contains(t, res.SecureKeyID, IDPrefix)
			assert.NotEmpty(t, res.UpdatedAt)

			payload, err := s.Read(ctx, res.SecureKeyID)
			require.NoError(t, err)
			assert.Equal(t, PayloadTypeKeystore, payload.Type)
			assert.Equal(t, ks, payload.Keystore)

			exists, err := s.Exists(ctx, res.SecureKeyID)
			require.NoError(t, err)
			assert.Equal(t, ExistsResult{Exists: true, Supported: true}, exists)

			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{res.SecureKeyID}, ids)
		})
	}
}

func TestStore_RemoveIsIdempotent(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			res, err := s.Write(ctx, WriteParams{Payload: KeystorePayload(testKeystore(t))})
			require.NoError(t, err)

			require.NoError(t, s.Remove(ctx, res.SecureKeyID))
			require.NoError(t, s.Remove(ctx, res.SecureKeyID))

			_, err = s.Read(ctx, res.SecureKeyID)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.True(t, IsNotFound(err))

			exists, err := s.Exists(ctx, res.SecureKeyID)
			require.NoError(t, err)
			assert.False(t, exists.Exists)
			assert.True(t, exists.Supported)

			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestStore_OverwritePreservesCreatedAt(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			s := factory(t, WithClock(func() time.Time { return clock }), WithIDGenerator(func() string { return IDPrefix + "fixed" }))

			first, err := s.Write(ctx, WriteParams{Payload: KeystorePayload(testKeystore(t))})
			require.NoError(t, err)

			clock = clock.Add(time.Hour)
			second, err := s.Write(ctx, WriteParams{SecureKeyID: first.SecureKeyID, Payload: KeystorePayload(testKeystore(t))})
			require.NoError(t, err)

			assert.Equal(t, first.SecureKeyID, second.SecureKeyID)
			assert.Equal(t, "2025-01-01T01:00:00Z", second.UpdatedAt)

			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.Len(t, ids, 1)
		})
	}
}

func TestStore_RejectsMalformedWrites(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			_, err := s.Write(ctx, WriteParams{Payload: Payload{Type: "other", Keystore: testKeystore(t)}})
			assert.ErrorIs(t, err, ErrMalformedPayload)

			_, err = s.Write(ctx, WriteParams{Payload: Payload{Type: PayloadTypeKeystore}})
			assert.ErrorIs(t, err, ErrMalformedPayload)

			_, err = s.Write(ctx, WriteParams{SecureKeyID: "../escape", Payload: KeystorePayload(testKeystore(t))})
			assert.Error(t, err)
		})
	}
}

func TestStore_BiometricDowngrade(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			downgraded := true
			check := func(context.Context) (biometric.Reason, bool) {
				return biometric.ReasonNotEnrolled, downgraded
			}
			s := factory(t, WithBiometricCheck(check))
			ks := testKeystore(t)

			gated, err := s.Write(ctx, WriteParams{Payload: KeystorePayload(ks), BiometricRequired: true})
			require.NoError(t, err)
			plain, err := s.Write(ctx, WriteParams{Payload: KeystorePayload(ks)})
			require.NoError(t, err)

			_, err = s.Read(ctx, gated.SecureKeyID)
			d, ok := AsDowngrade(err)
			require.True(t, ok)
			assert.Equal(t, gated.SecureKeyID, d.SecureKeyID)
			assert.Equal(t, biometric.ReasonNotEnrolled, d.Reason)
			assert.Equal(t, ks, d.Payload.Keystore)

			_, err = s.Read(ctx, plain.SecureKeyID)
			assert.NoError(t, err)

			downgraded = false
			_, err = s.Read(ctx, gated.SecureKeyID)
			assert.NoError(t, err)
		})
	}
}

func TestStore_CanceledContext(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			s := factory(t)

			_, err := s.Write(ctx, WriteParams{Payload: KeystorePayload(testKeystore(t))})
			assert.ErrorIs(t, err, context.Canceled)
			_, err = s.List(ctx)
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestFileStore_VersionMismatch(t *testing.T) {
	tests := []struct {
		name     string
		envelope map[string]any
		actual   *int
		message  string
	}{
		{"future version", map[string]any{"version": 2, "payload": map[string]any{"type": "keystore"}}, intPtr(2), "expected 1, received 2"},
		{"missing version", map[string]any{"payload": map[string]any{"type": "keystore"}}, nil, "expected 1, received unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			backend := storage.NewMemory()
			capture := telemetry.NewCapture()
			s := NewFileStore(backend, WithTelemetry(telemetry.NewRecorder("1.0.0", telemetry.DeviceDesktop, capture)))

			data, err := json.Marshal(tt.envelope)
			require.NoError(t, err)
			require.NoError(t, backend.Put(storage.SecureEntryPath(IDPrefix+"old"), data, nil))

			_, err = s.Read(ctx, IDPrefix+"old")
			var mismatch *VersionMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, EnvelopeVersion, mismatch.Expected)
			assert.Equal(t, tt.actual, mismatch.Actual)
			assert.Contains(t, err.Error(), tt.message)

			event, ok := capture.Find(telemetry.ActionVersionMismatch)
			require.True(t, ok)
			assert.NotEqual(t, IDPrefix+"old", event.SecureKeyID)
		})
	}
}

func TestFileStore_MalformedEntry(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	s := NewFileStore(backend)

	require.NoError(t, backend.Put(storage.SecureEntryPath(IDPrefix+"bad"), []byte("{not json"), nil))
	_, err := s.Read(ctx, IDPrefix+"bad")
	assert.ErrorIs(t, err, ErrMalformedPayload)

	require.NoError(t, backend.Put(storage.SecureEntryPath(IDPrefix+"empty"), []byte(`{"version":1}`), nil))
	_, err = s.Read(ctx, IDPrefix+"empty")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestFileStore_ListFiltersPrefix(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	s := NewFileStore(backend)

	res, err := s.Write(ctx, WriteParams{Payload: KeystorePayload(testKeystore(t))})
	require.NoError(t, err)
	require.NoError(t, backend.Put(storage.SecureEntryPath("foreign-entry"), []byte("{}"), nil))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{res.SecureKeyID}, ids)
}

func TestFileStore_EnvelopeShape(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemory()
	s := NewFileStore(backend, WithIDGenerator(func() string { return IDPrefix + "shape" }))

	_, err := s.Write(ctx, WriteParams{Payload: KeystorePayload(testKeystore(t)), BiometricRequired: true})
	require.NoError(t, err)

	raw, err := backend.Get(storage.SecureEntryPath(IDPrefix + "shape"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.EqualValues(t, 1, doc["version"])
	assert.Equal(t, true, doc["biometricRequired"])
	assert.NotEmpty(t, doc["createdAt"])
	assert.NotEmpty(t, doc["updatedAt"])
	payload, ok := doc["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "keystore", payload["type"])
}

func TestKeyringStore_Unavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus not running"))
	defer keyring.MockInit()

	s := NewKeyringStore("")
	assert.ErrorIs(t, s.Available(), ErrUnavailable)

	_, err := s.Read(context.Background(), IDPrefix+"x")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.Exists(context.Background(), IDPrefix+"x")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestKeyringStore_Available(t *testing.T) {
	keyring.MockInit()
	assert.NoError(t, NewKeyringStore("walletstore-test").Available())
}

func intPtr(v int) *int { return &v }
