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

package telemetry

import (
	"context"
	"sync"

	"github.com/jeremyhahn/go-walletstore/pkg/logging"
	"github.com/jeremyhahn/go-walletstore/pkg/metrics"
)

// NewLogSink returns a sink that logs each event at info level. Metadata
// and the secure key hash are omitted from the log line.
func NewLogSink(logger *logging.Logger) Sink {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	logger = logger.Component("telemetry")
	return SinkFunc(func(ctx context.Context, e Event) {
		args := []any{
			"event", "secure_storage",
			"action", string(e.Action),
			"occurred_at", e.OccurredAt,
			"device_type", string(e.DeviceType),
			"app_version", e.AppVersion,
		}
		if e.WalletID != nil {
			args = append(args, "wallet_id", *e.WalletID)
		}
		logger.WithContext(ctx).Info("telemetry", args...)
	})
}

// NewMetricsSink returns a sink that counts events in Prometheus.
func NewMetricsSink() Sink {
	return SinkFunc(func(_ context.Context, e Event) {
		metrics.RecordSecureStorageEvent(string(e.Action), string(e.DeviceType))
	})
}

// MultiSink fans an event out to every non-nil sink in order.
func MultiSink(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return SinkFunc(func(ctx context.Context, e Event) {
		for _, s := range filtered {
			s.Emit(ctx, e)
		}
	})
}

// Capture is an in-memory sink that keeps every event it receives.
type Capture struct {
	mu     sync.Mutex
	events []Event
}

// NewCapture returns an empty Capture.
func NewCapture() *Capture {
	return &Capture{}
}

// Emit stores e.
func (c *Capture) Emit(_ context.Context, e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of the captured events.
func (c *Capture) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// Actions returns the captured actions in order.
func (c *Capture) Actions() []Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Action, len(c.events))
	for i, e := range c.events {
		out[i] = e.Action
	}
	return out
}

// Find returns the first event with the given action.
func (c *Capture) Find(action Action) (Event, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.events {
		if e.Action == action {
			return e, true
		}
	}
	return Event{}, false
}

// Reset discards captured events.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
