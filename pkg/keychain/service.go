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
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jeremyhahn/go-walletstore/pkg/biometric"
	"github.com/jeremyhahn/go-walletstore/pkg/correlation"
	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
	"github.com/jeremyhahn/go-walletstore/pkg/logging"
	"github.com/jeremyhahn/go-walletstore/pkg/metrics"
	"github.com/jeremyhahn/go-walletstore/pkg/observable"
	"github.com/jeremyhahn/go-walletstore/pkg/ratelimit"
	"github.com/jeremyhahn/go-walletstore/pkg/securestore"
	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
	"github.com/jeremyhahn/go-walletstore/pkg/validation"
	"github.com/jeremyhahn/go-walletstore/pkg/wallet"
)

const (
	// DefaultImportDelay lets a UI render its progress state before the
	// import continues.
	DefaultImportDelay = 200 * time.Millisecond

	// DefaultLoadDelay is applied after the load dialog returns a keystore.
	DefaultLoadDelay = 200 * time.Millisecond
)

// Options configures a Service. Only Wallets is required.
type Options struct {
	Wallets   wallet.Store
	Secure    securestore.Store
	Bridge    biometric.Bridge
	Telemetry *telemetry.Recorder
	Exporter  wallet.Exporter
	Loader    wallet.Loader
	Cache     *Cache
	Logger    *logging.Logger

	// Attempts throttles Unlock and ValidatePassword per wallet. Nil
	// disables throttling.
	Attempts *ratelimit.Limiter

	// KeystoreOptions are passed to keystore.Encrypt.
	KeystoreOptions []keystore.Option

	// ImportDelay and LoadDelay default when zero; negative disables them.
	ImportDelay time.Duration
	LoadDelay   time.Duration

	Now func() time.Time
}

// AddParams are the inputs of AddKeystoreWallet.
type AddParams struct {
	Phrase           string
	Name             string
	ID               int
	Password         string
	BiometricEnabled bool
}

// ImportParams are the inputs of ImportKeystore.
type ImportParams struct {
	Keystore *keystore.Keystore
	Password string
	Name     string
	ID       int
}

// WalletWatcher signals external changes to the wallet list.
// *wallet.Watcher implements it.
type WalletWatcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// Service owns the wallet list and the keystore state. Construct one per
// process with NewService. Mutating operations are serialized.
type Service struct {
	mu sync.Mutex

	store     wallet.Store
	resolver  *Resolver
	persister *Persister
	cache     *Cache
	bridge    biometric.Bridge
	telemetry *telemetry.Recorder
	exporter  wallet.Exporter
	loader    wallet.Loader
	logger    *logging.Logger
	attempts  *ratelimit.Limiter
	ksOpts    []keystore.Option

	importDelay time.Duration
	loadDelay   time.Duration
	now         func() time.Time

	state      *observable.State[KeystoreState]
	wallets    *observable.State[wallet.Wallets]
	importing  *observable.State[Result[bool]]
	persistent *observable.State[Result[wallet.Wallets]]

	closeOnce sync.Once
	done      chan struct{}
}

// NewService builds a Service and registers the cache lifecycle handlers.
// Call ReloadPersistentWallets to load the persisted list.
func NewService(opts Options) (*Service, error) {
	if opts.Wallets == nil {
		return nil, errors.New("keychain: wallet store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDiscard()
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewCache(WithCacheLogger(logger))
	}
	bridge := opts.Bridge
	if bridge == nil {
		bridge = biometric.NewInert(biometric.Policy{})
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Service{
		store:     opts.Wallets,
		cache:     cache,
		bridge:    bridge,
		telemetry: opts.Telemetry,
		exporter:  opts.Exporter,
		loader:    opts.Loader,
		logger:    logger.Component("wallet-keystore"),
		attempts:  opts.Attempts,
		ksOpts:    opts.KeystoreOptions,

		importDelay: delayOrDefault(opts.ImportDelay, DefaultImportDelay),
		loadDelay:   delayOrDefault(opts.LoadDelay, DefaultLoadDelay),
		now:         now,

		state:      observable.New(NoneState()),
		wallets:    observable.New(wallet.Wallets{}),
		importing:  observable.New(Initial[bool]()),
		persistent: observable.New(Pending[wallet.Wallets]()),
		done:       make(chan struct{}),
	}
	s.resolver = NewResolver(ResolverConfig{
		Cache:     cache,
		Secure:    opts.Secure,
		Bridge:    bridge,
		Telemetry: opts.Telemetry,
		Logger:    logger,
	})
	s.persister = NewPersister(opts.Wallets, opts.Telemetry, logger)
	cache.EnsureLifecycleHandlers()
	return s, nil
}

func delayOrDefault(d, def time.Duration) time.Duration {
	switch {
	case d < 0:
		return 0
	case d == 0:
		return def
	default:
		return d
	}
}

// AddKeystoreWallet encrypts the phrase, stores the new wallet (secure or
// legacy), persists the list with the new wallet selected and unlocks it.
// Any failure leaves the list and state unchanged.
func (s *Service) AddKeystoreWallet(ctx context.Context, p AddParams) (err error) {
	ctx, _ = correlation.Ensure(ctx)
	defer s.observe(metrics.OpAdd, time.Now(), &err)

	s.importing.Set(Pending[bool]())
	if err = s.addWallet(ctx, p); err != nil {
		s.logger.WithContext(ctx).Error(fmt.Errorf("failed to add keystore wallet: %w", err), "wallet_id", p.ID, "name", p.Name)
		s.importing.Set(Failure[bool](err))
		return err
	}
	s.importing.Set(Success(true))
	return nil
}

func (s *Service) addWallet(ctx context.Context, p AddParams) error {
	if err := validation.ValidateWalletID(p.ID); err != nil {
		return fmt.Errorf("%w: %v", wallet.ErrInvalidID, err)
	}
	if err := validation.ValidateWalletName(p.Name); err != nil {
		return fmt.Errorf("%w: %v", wallet.ErrInvalidName, err)
	}
	if p.Password == "" {
		return ErrEmptyPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.wallets.Get()
	if _, exists := current.Find(p.ID); exists {
		return fmt.Errorf("%w: %d", wallet.ErrDuplicateID, p.ID)
	}
	if current.HasName(p.Name, 0) {
		return fmt.Errorf("%w: %q", wallet.ErrDuplicateName, p.Name)
	}

	ks, err := keystore.Encrypt(p.Phrase, p.Password, s.ksOpts...)
	if err != nil {
		return err
	}

	outcome, err := s.resolver.WriteNewWalletEntry(ctx, NewEntry{
		ID:               p.ID,
		Name:             p.Name,
		Keystore:         ks,
		BiometricEnabled: p.BiometricEnabled,
	})
	if err != nil {
		return err
	}

	entry := outcome.Wallet.WithMeta(wallet.Metadata{ID: p.ID, Name: p.Name, Selected: true})
	updated := current.Unselected().Append(entry)
	saved, err := s.persister.Persist(ctx, updated, PersistContext{
		Action:      ActionAddWallet,
		WalletID:    p.ID,
		SecureKeyID: secureKeyID(entry),
	}, outcome.Rollback)
	if err != nil {
		return err
	}

	s.setWallets(saved)
	s.cache.Set(p.ID, ks)
	s.state.Set(UnlockedState(p.ID, p.Name, p.Phrase))
	s.logger.WithContext(ctx).Info("keystore wallet saved",
		"wallet_id", p.ID, "name", p.Name, "storage_mode", outcome.Mode)
	return nil
}

// RemoveKeystoreWallet removes the current wallet and returns the number of
// wallets left. The last remaining wallet becomes the selected, locked
// wallet. The secure entry is removed only after the list was persisted;
// failing to remove it does not fail the operation.
func (s *Service) RemoveKeystoreWallet(ctx context.Context) (remaining int, err error) {
	ctx, _ = correlation.Ensure(ctx)
	defer s.observe(metrics.OpRemove, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.state.Get().ID()
	if !ok {
		return 0, fmt.Errorf("can't remove wallet: %w", ErrNoKeystore)
	}

	current := s.wallets.Get()
	removed, found := current.Find(id)
	left := current.Without(id)
	next, hasNext := left.Last()
	if hasNext {
		left = left.WithSelected(next.Meta().ID)
	}

	saved, err := s.persister.Persist(ctx, left, PersistContext{
		Action:      ActionRemoveWallet,
		WalletID:    id,
		SecureKeyID: secureKeyID(removed),
	}, nil)
	if err != nil {
		return 0, err
	}

	s.setWallets(saved)
	if hasNext {
		s.state.Set(LockedState(next.Meta().ID, next.Meta().Name))
	} else {
		s.state.Set(NoneState())
	}
	s.cache.Delete(id)

	if found {
		if rerr := s.resolver.RemoveSecureEntryIfNeeded(ctx, removed); rerr != nil {
			s.logger.WithContext(ctx).Warn("could not remove secure entry", "wallet_id", id, "error", rerr)
		}
	}
	s.logger.WithContext(ctx).Info("keystore wallet removed", "wallet_id", id, "remaining_wallets", len(saved))
	return len(saved), nil
}

// ChangeKeystoreWallet selects the wallet with id and locks it. Switching
// wallets never unlocks the new one.
func (s *Service) ChangeKeystoreWallet(ctx context.Context, id int) <-chan Result[bool] {
	ctx, _ = correlation.Ensure(ctx)
	if _, ok := s.Wallets().Find(id); !ok {
		return immediate(Failure[bool](fmt.Errorf("could not find a wallet in wallet list with id %d: %w", id, ErrWalletNotFound)))
	}

	return progressive(func() Result[bool] {
		var err error
		defer s.observe(metrics.OpChange, time.Now(), &err)

		s.mu.Lock()
		defer s.mu.Unlock()

		current := s.wallets.Get()
		selected, ok := current.Find(id)
		if !ok {
			err = walletNotFound(id)
			return Failure[bool](err)
		}
		saved, err := s.persister.Persist(ctx, current.WithSelected(id), PersistContext{
			Action:      ActionChangeWallet,
			WalletID:    id,
			SecureKeyID: secureKeyID(selected),
		}, nil)
		if err != nil {
			return Failure[bool](err)
		}

		s.setWallets(saved)
		s.state.Set(LockedState(id, selected.Meta().Name))
		s.logger.WithContext(ctx).Info("keystore selection changed", "wallet_id", id, "name", selected.Meta().Name)
		return Success(true)
	})
}

// RenameKeystoreWallet renames wallet id. The wallet must be the unlocked
// current wallet.
func (s *Service) RenameKeystoreWallet(ctx context.Context, id int, name string) <-chan Result[bool] {
	ctx, _ = correlation.Ensure(ctx)
	state := s.State()
	if currentID, _ := state.ID(); !state.IsUnlocked() || currentID != id {
		return immediate(Failure[bool](fmt.Errorf("could not rename wallet with id %d - it seems to be locked: %w", id, ErrNotUnlocked)))
	}
	if err := validation.ValidateWalletName(name); err != nil {
		return immediate(Failure[bool](fmt.Errorf("%w: %v", wallet.ErrInvalidName, err)))
	}

	return progressive(func() Result[bool] {
		var err error
		defer s.observe(metrics.OpRename, time.Now(), &err)

		s.mu.Lock()
		defer s.mu.Unlock()

		state := s.state.Get()
		if currentID, _ := state.ID(); !state.IsUnlocked() || currentID != id {
			err = ErrNotUnlocked
			return Failure[bool](err)
		}
		current := s.wallets.Get()
		if current.HasName(name, id) {
			err = fmt.Errorf("%w: %q", wallet.ErrDuplicateName, name)
			return Failure[bool](err)
		}
		target, ok := current.Find(id)
		if !ok {
			err = walletNotFound(id)
			return Failure[bool](err)
		}

		saved, err := s.persister.Persist(ctx, current.Renamed(id, name), PersistContext{
			Action:      ActionRenameWallet,
			WalletID:    id,
			SecureKeyID: secureKeyID(target),
		}, nil)
		if err != nil {
			return Failure[bool](err)
		}

		s.setWallets(saved)
		s.state.Set(state.WithName(name))
		s.logger.WithContext(ctx).Info("keystore renamed", "wallet_id", id, "name", name)
		return Success(true)
	})
}

// ImportKeystore decrypts an external keystore and adds it as a new
// wallet.
func (s *Service) ImportKeystore(ctx context.Context, p ImportParams) (err error) {
	ctx, _ = correlation.Ensure(ctx)
	defer s.observe(metrics.OpImport, time.Now(), &err)

	s.importing.Set(Pending[bool]())
	phrase, err := keystore.Decrypt(p.Keystore, p.Password)
	if err == nil {
		err = sleepContext(ctx, s.importDelay)
	}
	if err != nil {
		s.importing.Set(Failure[bool](err))
		return err
	}
	return s.AddKeystoreWallet(ctx, AddParams{
		Phrase:   phrase,
		Name:     p.Name,
		ID:       p.ID,
		Password: p.Password,
	})
}

// ExportKeystore hands the current wallet's encrypted keystore to the
// Exporter as asgardex-<name>.json. It returns the destination, or "" when
// the user cancelled.
func (s *Service) ExportKeystore(ctx context.Context) (path string, err error) {
	ctx, _ = correlation.Ensure(ctx)
	defer s.observe(metrics.OpExport, time.Now(), &err)

	if s.exporter == nil {
		return "", ErrNoExporter
	}
	id, ok := s.State().ID()
	if !ok {
		return "", fmt.Errorf("can't export keystore: %w", ErrNoKeystore)
	}
	w, ok := s.Wallets().Find(id)
	if !ok {
		return "", fmt.Errorf("can't export keystore: %w", walletNotFound(id))
	}

	ks, err := s.resolver.ResolveForWallet(ctx, w)
	if err != nil {
		return "", err
	}

	fileName := "asgardex-" + validation.SanitizeFileSegment(w.Meta().Name) + ".json"

	s.recordExport(ctx, w, telemetry.ActionExportInitiated)
	path, err = s.exporter.Export(ctx, fileName, ks)
	if err != nil {
		return "", err
	}

	action := wallet.ExportCompleted
	if path == "" {
		action = wallet.ExportCanceled
		s.recordExport(ctx, w, telemetry.ActionExportCanceled)
	} else {
		s.recordExport(ctx, w, telemetry.ActionExportCompleted)
	}
	s.trackExport(ctx, id, action)
	return path, nil
}

func (s *Service) recordExport(ctx context.Context, w wallet.Wallet, action telemetry.Action) {
	s.telemetry.Record(ctx, telemetry.Params{
		Action:      action,
		WalletID:    w.Meta().ID,
		SecureKeyID: secureKeyID(w),
	})
}

// trackExport stores export bookkeeping on secure wallets. It is best
// effort; the export already happened.
func (s *Service) trackExport(ctx context.Context, id int, action wallet.ExportAction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.wallets.Get()
	w, ok := current.Find(id)
	if !ok {
		return
	}
	sw, ok := w.(wallet.SecureWallet)
	if !ok {
		return
	}

	at := s.now().UTC().Format(time.RFC3339Nano)
	sw.LastExportAction = &action
	sw.LastExportActionAt = &at
	if action == wallet.ExportCompleted {
		sw.ExportAcknowledgedAt = &at
	}

	updated := make(wallet.Wallets, len(current))
	for i, entry := range current {
		if entry.Meta().ID == id {
			updated[i] = sw
		} else {
			updated[i] = entry
		}
	}
	saved, err := s.persister.Persist(ctx, updated, PersistContext{
		Action:      ActionExportWallet,
		WalletID:    id,
		SecureKeyID: sw.SecureKeyID,
	}, nil)
	if err != nil {
		s.logger.WithContext(ctx).Warn("could not record export", "wallet_id", id, "error", err)
		return
	}
	s.setWallets(saved)
}

// LoadKeystore asks the Loader for a keystore. A cancelled dialog ends in
// Initial rather than a failure.
func (s *Service) LoadKeystore(ctx context.Context) <-chan Result[*keystore.Keystore] {
	ctx, _ = correlation.Ensure(ctx)
	if s.loader == nil {
		return immediate(Failure[*keystore.Keystore](ErrNoLoader))
	}
	return progressive(func() Result[*keystore.Keystore] {
		var err error
		defer s.observe(metrics.OpLoad, time.Now(), &err)

		ks, err := s.loader.Load(ctx)
		if err != nil {
			return Failure[*keystore.Keystore](err)
		}
		if err = sleepContext(ctx, s.loadDelay); err != nil {
			return Failure[*keystore.Keystore](err)
		}
		if ks == nil {
			return Initial[*keystore.Keystore]()
		}
		return Success(ks)
	})
}

// Lock drops the phrase of the current wallet and evicts its cache entry.
func (s *Service) Lock(ctx context.Context) (err error) {
	ctx, _ = correlation.Ensure(ctx)
	defer s.observe(metrics.OpLock, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state.Get()
	id, ok := state.ID()
	if !ok {
		return fmt.Errorf("can't lock: %w", ErrNoKeystore)
	}
	s.state.Set(state.Locked())
	s.cache.Delete(id)
	s.logger.WithContext(ctx).Info("keystore locked", "wallet_id", id, "name", state.Name())
	return nil
}

// Unlock decrypts the current wallet with password. On failure the state
// is unchanged and an *UnlockError is returned.
func (s *Service) Unlock(ctx context.Context, password string) (err error) {
	ctx, _ = correlation.Ensure(ctx)
	defer s.observe(metrics.OpUnlock, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state.Get()
	id, ok := state.ID()
	if !ok {
		return fmt.Errorf("can't unlock: %w", ErrNoKeystore)
	}
	if !s.attempts.Allow(strconv.Itoa(id)) {
		s.logger.WithContext(ctx).Warn("keystore unlock throttled", "wallet_id", id)
		return &UnlockError{WalletID: id, Cause: ErrTooManyAttempts}
	}

	ks, err := s.resolver.ResolveByID(ctx, s.wallets.Get(), id)
	if err == nil {
		var phrase string
		if phrase, err = keystore.Decrypt(ks, password); err == nil {
			s.attempts.Reset(strconv.Itoa(id))
			s.state.Set(UnlockedState(id, state.Name(), phrase))
			s.logger.WithContext(ctx).Info("keystore unlocked", "wallet_id", id, "name", state.Name())
			return nil
		}
	}

	s.logger.WithContext(ctx).Warn("keystore unlock failed", "wallet_id", id, "name", state.Name(), "reason", err)
	return &UnlockError{WalletID: id, Cause: err}
}

// ValidatePassword checks password against the current wallet without
// changing state. An empty password yields Initial.
func (s *Service) ValidatePassword(ctx context.Context, password string) <-chan Result[bool] {
	ctx, _ = correlation.Ensure(ctx)
	if password == "" {
		return immediate(Initial[bool]())
	}
	id, ok := s.State().ID()
	if !ok {
		return immediate(Failure[bool](fmt.Errorf("could not get current keystore to validate password: %w", ErrNoKeystore)))
	}
	if !s.attempts.Allow(strconv.Itoa(id)) {
		return immediate(Failure[bool](ErrTooManyAttempts))
	}

	return progressive(func() Result[bool] {
		var err error
		defer s.observe(metrics.OpValidatePassword, time.Now(), &err)

		ks, err := s.resolver.ResolveByID(ctx, s.Wallets(), id)
		if err != nil {
			return Failure[bool](err)
		}
		if _, err = keystore.Decrypt(ks, password); err != nil {
			return Failure[bool](err)
		}
		s.attempts.Reset(strconv.Itoa(id))
		return Success(true)
	})
}

// ReloadPersistentWallets reloads the list from the store. On success the
// state follows the first selected wallet (locked) or becomes none, and the
// cache is pruned to the reloaded ids.
func (s *Service) ReloadPersistentWallets(ctx context.Context) (result Result[wallet.Wallets]) {
	ctx, _ = correlation.Ensure(ctx)
	var err error
	defer s.observe(metrics.OpReload, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.persistent.Set(Pending[wallet.Wallets]())
	ws, err := s.store.Load(ctx)
	if err != nil {
		s.logger.WithContext(ctx).Error(fmt.Errorf("could not load wallets: %w", err))
		result = Failure[wallet.Wallets](err)
		s.persistent.Set(result)
		return result
	}

	s.applyReloaded(ws)
	result = Success(ws)
	s.persistent.Set(result)
	return result
}

func (s *Service) applyReloaded(ws wallet.Wallets) {
	if selected, ok := ws.Selected(); ok {
		s.state.Set(LockedState(selected.Meta().ID, selected.Meta().Name))
	} else {
		s.state.Set(NoneState())
	}
	s.setWallets(ws)
	s.cache.Prune(ws.IDs())
}

// WatchWallets reloads the list whenever watcher reports a change that
// differs from the in-memory list. It returns once watching has started.
func (s *Service) WatchWallets(ctx context.Context, watcher WalletWatcher) error {
	changes, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-s.done:
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				s.reloadIfChanged(ctx)
			}
		}
	}()
	return nil
}

// reloadIfChanged skips reloads caused by this service's own writes so they
// do not re-lock an unlocked wallet.
func (s *Service) reloadIfChanged(ctx context.Context) {
	ws, err := s.store.Load(ctx)
	if err != nil {
		s.ReloadPersistentWallets(ctx)
		return
	}
	onDisk, errDisk := wallet.Encode(ws)
	inMemory, errMem := wallet.Encode(s.Wallets())
	if errDisk == nil && errMem == nil && bytes.Equal(onDisk, inMemory) {
		return
	}
	s.logger.WithContext(ctx).Info("wallet list changed on disk, reloading")
	s.ReloadPersistentWallets(ctx)
}

// State returns the current keystore state.
func (s *Service) State() KeystoreState { return s.state.Get() }

// StateUpdates streams the keystore state until ctx is done.
func (s *Service) StateUpdates(ctx context.Context) <-chan KeystoreState {
	return s.state.Subscribe(ctx)
}

// Wallets returns the in-memory wallet list.
func (s *Service) Wallets() wallet.Wallets { return s.wallets.Get() }

// WalletsUI returns the list without key material.
func (s *Service) WalletsUI() []wallet.Metadata { return s.wallets.Get().UI() }

// WalletsUIUpdates streams WalletsUI until ctx is done.
func (s *Service) WalletsUIUpdates(ctx context.Context) <-chan []wallet.Metadata {
	in := s.wallets.Subscribe(ctx)
	out := make(chan []wallet.Metadata, 1)
	go func() {
		defer close(out)
		for ws := range in {
			select {
			case out <- ws.UI():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// PersistentWallets is the outcome of the latest reload. It is Pending
// until the first reload completes.
func (s *Service) PersistentWallets() *observable.State[Result[wallet.Wallets]] {
	return s.persistent
}

// ImportingState tracks the latest add or import.
func (s *Service) ImportingState() *observable.State[Result[bool]] { return s.importing }

func (s *Service) ResetImportingState() { s.importing.Set(Initial[bool]()) }

// BiometricNotices is the single-slot biometric notice channel.
func (s *Service) BiometricNotices() *observable.State[*biometric.Notice] {
	return s.bridge.Notices()
}

func (s *Service) ClearBiometricNotice() { s.bridge.ClearNotice() }

// ResolveBiometricOptIn reports whether a requested biometric protection can
// be honoured on this platform.
func (s *Service) ResolveBiometricOptIn(ctx context.Context, requested bool) bool {
	return s.bridge.ResolveOptIn(ctx, requested)
}

// NextWalletID returns the id a new wallet should use.
func (s *Service) NextWalletID() int { return s.wallets.Get().NextID() }

// Close stops watchers and clears the cache. The service must not be used
// afterwards.
func (s *Service) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.cache.Close()
}

func (s *Service) setWallets(ws wallet.Wallets) {
	s.wallets.Set(ws)
	for mode, n := range ws.CountByMode() {
		metrics.SetWalletsTotal(string(mode), n)
	}
}

func (s *Service) observe(op string, start time.Time, err *error) {
	metrics.RecordOperation(op, metrics.StatusOf(*err), time.Since(start).Seconds())
}

func secureKeyID(w wallet.Wallet) string {
	if sw, ok := w.(wallet.SecureWallet); ok {
		return sw.SecureKeyID
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
