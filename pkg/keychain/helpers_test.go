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
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-walletstore/pkg/biometric"
	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
	"github.com/jeremyhahn/go-walletstore/pkg/securestore"
	"github.com/jeremyhahn/go-walletstore/pkg/storage"
	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
	"github.com/jeremyhahn/go-walletstore/pkg/wallet"
)

const testPhrase = "abandon ability able about above absent absorb abstract absurd abuse access accident"

func testKeystore(t *testing.T, phrase, password string) *keystore.Keystore {
	t.Helper()
	ks, err := keystore.Encrypt(phrase, password, keystore.WithIterations(2))
	require.NoError(t, err)
	return ks
}

// manualClock drives Cache timers by hand.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

// fakeSecureStore is an in-memory securestore.Store with call counters and
// injectable failures.
type fakeSecureStore struct {
	mu        sync.Mutex
	entries   map[string]securestore.Payload
	nextID    int
	writeErr  error
	readErr   error
	removeErr error

	writes    int
	reads     int
	removes   int
	lastWrite securestore.WriteParams
}

func newFakeSecureStore() *fakeSecureStore {
	return &fakeSecureStore{entries: make(map[string]securestore.Payload)}
}

func (f *fakeSecureStore) Write(_ context.Context, params securestore.WriteParams) (securestore.WriteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	f.lastWrite = params
	if f.writeErr != nil {
		return securestore.WriteResult{}, f.writeErr
	}
	f.nextID++
	id := fmt.Sprintf("%s%d", securestore.IDPrefix, f.nextID)
	f.entries[id] = params.Payload
	return securestore.WriteResult{SecureKeyID: id, UpdatedAt: "2025-01-01T00:00:00Z"}, nil
}

func (f *fakeSecureStore) Read(_ context.Context, id string) (securestore.Payload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return securestore.Payload{}, f.readErr
	}
	p, ok := f.entries[id]
	if !ok {
		return securestore.Payload{}, securestore.ErrNotFound
	}
	return p, nil
}

func (f *fakeSecureStore) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes++
	if f.removeErr != nil {
		return f.removeErr
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeSecureStore) Exists(_ context.Context, id string) (securestore.ExistsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[id]
	return securestore.ExistsResult{Exists: ok, Supported: true}, nil
}

func (f *fakeSecureStore) List(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.entries))
	for id := range f.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeSecureStore) counts() (writes, reads, removes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes, f.reads, f.removes
}

// flakyWalletStore wraps a wallet.Store and fails saves on demand.
type flakyWalletStore struct {
	wallet.Store
	mu      sync.Mutex
	saveErr error
	saves   int
}

func (f *flakyWalletStore) Save(ctx context.Context, ws wallet.Wallets) (wallet.Wallets, error) {
	f.mu.Lock()
	f.saves++
	err := f.saveErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.Save(ctx, ws)
}

func (f *flakyWalletStore) failSaves(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

type testEnv struct {
	svc     *Service
	secure  *fakeSecureStore
	backend *storage.MemoryBackend
	wallets *flakyWalletStore
	events  *telemetry.Capture
	cache   *Cache
}

type envOption func(*Options)

func withoutSecure() envOption {
	return func(o *Options) { o.Secure = nil }
}

func withBridge(b biometric.Bridge) envOption {
	return func(o *Options) { o.Bridge = b }
}

func withExporter(e wallet.Exporter) envOption {
	return func(o *Options) { o.Exporter = e }
}

func withLoader(l wallet.Loader) envOption {
	return func(o *Options) { o.Loader = l }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	backend := storage.NewMemory()
	env := &testEnv{
		secure:  newFakeSecureStore(),
		backend: backend,
		wallets: &flakyWalletStore{Store: wallet.NewStore(backend)},
		events:  telemetry.NewCapture(),
		cache:   NewCache(),
	}
	o := Options{
		Wallets:         env.wallets,
		Secure:          env.secure,
		Telemetry:       telemetry.NewRecorder("1.0.0", telemetry.DeviceDesktop, env.events),
		Cache:           env.cache,
		KeystoreOptions: []keystore.Option{keystore.WithIterations(2)},
		ImportDelay:     -1,
		LoadDelay:       -1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	svc, err := NewService(o)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	env.svc = svc
	return env
}

func (e *testEnv) add(t *testing.T, id int, name string) {
	t.Helper()
	require.NoError(t, e.svc.AddKeystoreWallet(context.Background(), AddParams{
		Phrase:   testPhrase,
		Name:     name,
		ID:       id,
		Password: "pw",
	}))
}
