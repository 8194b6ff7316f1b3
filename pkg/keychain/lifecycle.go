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
	"os"
	"os/signal"
	"sync"
)

// LifecycleEvent is an application lifecycle change that evicts the cache.
type LifecycleEvent string

const (
	EventHidden    LifecycleEvent = "visibility_hidden"
	EventFocusLost LifecycleEvent = "focus_lost"
)

// ErrLifecycleUnsupported is returned by sources the platform cannot serve.
var ErrLifecycleUnsupported = errors.New("keychain: lifecycle source not supported on this platform")

// LifecycleSource delivers lifecycle events until ctx is done.
type LifecycleSource interface {
	Subscribe(ctx context.Context) (<-chan LifecycleEvent, error)
}

// Events is a LifecycleSource fed by Publish. Hosts with their own window
// system forward visibility and focus changes through it.
type Events struct {
	mu   sync.Mutex
	subs map[chan LifecycleEvent]struct{}
}

func NewEvents() *Events {
	return &Events{subs: make(map[chan LifecycleEvent]struct{})}
}

func (e *Events) Subscribe(ctx context.Context) (<-chan LifecycleEvent, error) {
	ch := make(chan LifecycleEvent, 4)
	e.mu.Lock()
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.mu.Lock()
		delete(e.subs, ch)
		close(ch)
		e.mu.Unlock()
	}()
	return ch, nil
}

// Publish delivers ev to every subscriber, dropping it for subscribers that
// are not keeping up.
func (e *Events) Publish(ev LifecycleEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for ch := range e.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SignalSource turns process signals into focus-loss events for terminal
// hosts.
type SignalSource struct {
	signals []os.Signal
}

// NewSignalSource watches sigs, or the platform defaults when none are
// given.
func NewSignalSource(sigs ...os.Signal) *SignalSource {
	if len(sigs) == 0 {
		sigs = defaultLifecycleSignals()
	}
	return &SignalSource{signals: sigs}
}

func (s *SignalSource) Subscribe(ctx context.Context) (<-chan LifecycleEvent, error) {
	if len(s.signals) == 0 {
		return nil, ErrLifecycleUnsupported
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	out := make(chan LifecycleEvent, 1)
	go func() {
		defer close(out)
		defer signal.Stop(sigCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigCh:
				select {
				case out <- EventFocusLost:
				default:
				}
			}
		}
	}()
	return out, nil
}
