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

package biometric

import (
	"context"
	"sync"

	"github.com/jeremyhahn/go-walletstore/pkg/logging"
	"github.com/jeremyhahn/go-walletstore/pkg/observable"
	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
)

// Bridge is consumed by the keystore service and storage resolver.
type Bridge interface {
	// ResolveOptIn returns true only when biometrics were requested and the
	// platform reports them fully available.
	ResolveOptIn(ctx context.Context, requested bool) bool
	ShouldBlockOnSecureFailure() bool
	EmitNotice(n Notice)
	ClearNotice()
	// Notices holds the most recent notice, or nil.
	Notices() *observable.State[*Notice]
	// CheckDowngrade reports whether a biometric-gated read would currently
	// be served under a downgraded guarantee.
	CheckDowngrade(ctx context.Context) (Reason, bool)
}

// Option configures a MobileBridge.
type Option func(*MobileBridge)

// WithLogger sets the bridge logger.
func WithLogger(logger *logging.Logger) Option {
	return func(b *MobileBridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithTelemetry records biometric_success and biometric_downgraded events.
func WithTelemetry(recorder *telemetry.Recorder) Option {
	return func(b *MobileBridge) {
		b.telemetry = recorder
	}
}

// MobileBridge is the bridge for plugin-capable mobile platforms.
type MobileBridge struct {
	policy    Policy
	loader    PluginLoader
	logger    *logging.Logger
	telemetry *telemetry.Recorder
	notices   *observable.State[*Notice]

	mu     sync.Mutex
	plugin Plugin
}

// NewMobileBridge returns a bridge using loader to obtain the platform plugin.
func NewMobileBridge(policy Policy, loader PluginLoader, opts ...Option) *MobileBridge {
	if loader == nil {
		loader = LoadRegistered
	}
	b := &MobileBridge{
		policy:  policy,
		loader:  loader,
		logger:  logging.NewDiscard(),
		notices: observable.New[*Notice](nil),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.Component("biometric")
	return b
}

func (b *MobileBridge) ResolveOptIn(ctx context.Context, requested bool) bool {
	if !requested || !b.policy.BiometricEnabled || !b.policy.Mobile {
		return false
	}

	reason, downgraded := b.check(ctx)
	if downgraded {
		b.EmitNotice(Notice{Reason: reason, Surface: SurfaceOnboarding, SecureKeyID: PendingSecureKeyID})
		b.telemetry.Record(ctx, telemetry.Params{
			Action:   telemetry.ActionBiometricDowngraded,
			Metadata: map[string]any{"reason": string(reason), "surface": string(SurfaceOnboarding)},
		})
		return false
	}

	b.telemetry.Record(ctx, telemetry.Params{Action: telemetry.ActionBiometricSuccess})
	return true
}

func (b *MobileBridge) ShouldBlockOnSecureFailure() bool {
	return b.policy.ShouldBlockOnSecureFailure()
}

func (b *MobileBridge) EmitNotice(n Notice) {
	b.logger.Warn("biometric guarantee downgraded",
		"reason", string(n.Reason),
		"surface", string(n.Surface))
	b.notices.Set(&n)
}

func (b *MobileBridge) ClearNotice() {
	b.notices.Set(nil)
}

func (b *MobileBridge) Notices() *observable.State[*Notice] {
	return b.notices
}

func (b *MobileBridge) CheckDowngrade(ctx context.Context) (Reason, bool) {
	if !b.policy.Mobile {
		return "", false
	}
	return b.check(ctx)
}

func (b *MobileBridge) check(ctx context.Context) (Reason, bool) {
	plugin, err := b.loadPlugin(ctx)
	if err != nil {
		b.logger.Debug("biometric plugin unavailable", "error", err)
		return ReasonPluginUnavailable, true
	}

	status, err := plugin.CheckStatus(ctx)
	if err != nil {
		b.logger.Debug("biometric status check failed", "error", err)
		return ReasonStatusError, true
	}
	return ReasonFromStatus(status)
}

// loadPlugin caches the first successfully loaded plugin. Failures are not
// cached so a later call may succeed.
func (b *MobileBridge) loadPlugin(ctx context.Context) (Plugin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.plugin != nil {
		return b.plugin, nil
	}
	plugin, err := b.loader(ctx)
	if err != nil {
		return nil, err
	}
	if plugin == nil {
		return nil, ErrPluginUnavailable
	}
	b.plugin = plugin
	return plugin, nil
}

// Inert is the bridge for platforms without biometric support. It never
// opts in and never emits notices.
type Inert struct {
	policy  Policy
	notices *observable.State[*Notice]
}

// NewInert returns an inert bridge. The policy only feeds
// ShouldBlockOnSecureFailure.
func NewInert(policy Policy) *Inert {
	return &Inert{policy: policy, notices: observable.New[*Notice](nil)}
}

func (i *Inert) ResolveOptIn(context.Context, bool) bool { return false }

func (i *Inert) ShouldBlockOnSecureFailure() bool {
	return i.policy.ShouldBlockOnSecureFailure()
}

func (i *Inert) EmitNotice(Notice) {}

func (i *Inert) ClearNotice() {}

func (i *Inert) Notices() *observable.State[*Notice] { return i.notices }

func (i *Inert) CheckDowngrade(context.Context) (Reason, bool) { return "", false }
