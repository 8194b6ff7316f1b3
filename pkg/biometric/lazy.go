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
)

// Factory builds the platform bridge.
type Factory func() (Bridge, error)

type lazyBridge struct {
	resolve func() Bridge
}

// Lazy returns a bridge that builds the real implementation on first use.
// Concurrent first callers share one build. When the platform is not
// capable, or factory fails, every call is served by an inert bridge.
func Lazy(capable bool, policy Policy, factory Factory, logger *logging.Logger) Bridge {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	logger = logger.Component("biometric")

	return &lazyBridge{
		resolve: sync.OnceValue(func() Bridge {
			if !capable || factory == nil {
				return NewInert(policy)
			}
			bridge, err := factory()
			if err != nil || bridge == nil {
				logger.Warn("falling back to inert biometric bridge", "error", err)
				return NewInert(policy)
			}
			return bridge
		}),
	}
}

func (l *lazyBridge) ResolveOptIn(ctx context.Context, requested bool) bool {
	return l.resolve().ResolveOptIn(ctx, requested)
}

func (l *lazyBridge) ShouldBlockOnSecureFailure() bool {
	return l.resolve().ShouldBlockOnSecureFailure()
}

func (l *lazyBridge) EmitNotice(n Notice) {
	l.resolve().EmitNotice(n)
}

func (l *lazyBridge) ClearNotice() {
	l.resolve().ClearNotice()
}

func (l *lazyBridge) Notices() *observable.State[*Notice] {
	return l.resolve().Notices()
}

func (l *lazyBridge) CheckDowngrade(ctx context.Context) (Reason, bool) {
	return l.resolve().CheckDowngrade(ctx)
}

// ForPolicy returns the bridge for a platform: a lazily loaded mobile
// bridge on mobile devices with the biometric flag on, inert otherwise.
func ForPolicy(policy Policy, loader PluginLoader, logger *logging.Logger, opts ...Option) Bridge {
	capable := policy.Mobile && policy.BiometricEnabled
	return Lazy(capable, policy, func() (Bridge, error) {
		return NewMobileBridge(policy, loader, append([]Option{WithLogger(logger)}, opts...)...), nil
	}, logger)
}
