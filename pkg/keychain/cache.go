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
	"sync"
	"time"

	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
	"github.com/jeremyhahn/go-walletstore/pkg/logging"
	"github.com/jeremyhahn/go-walletstore/pkg/metrics"
)

// DefaultIdleTimeout clears the cache after this long without a Set.
const DefaultIdleTimeout = 2 * time.Minute

// Timer is the part of *time.Timer the cache uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it through
// SystemAfterFunc; tests inject a manual clock.
type AfterFunc func(d time.Duration, f func()) Timer

// SystemAfterFunc wraps time.AfterFunc.
func SystemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.idle = d
		}
	}
}

// WithAfterFunc overrides the timer factory.
func WithAfterFunc(fn AfterFunc) CacheOption {
	return func(c *Cache) {
		if fn != nil {
			c.afterFunc = fn
		}
	}
}

// WithLifecycleSources sets the sources EnsureLifecycleHandlers subscribes to.
func WithLifecycleSources(sources ...LifecycleSource) CacheOption {
	return func(c *Cache) {
		c.sources = append(c.sources, sources...)
	}
}

// WithCacheLogger sets the cache logger.
func WithCacheLogger(logger *logging.Logger) CacheOption {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Cache holds resolved keystores by wallet id. It is either hot (recent
// Set) or cold (everything evicted at once). No operation fails.
type Cache struct {
	mu         sync.Mutex
	entries    map[int]*keystore.Keystore
	idle       time.Duration
	afterFunc  AfterFunc
	timer      Timer
	generation uint64

	sources    []LifecycleSource
	registered bool
	stop       context.CancelFunc
	logger     *logging.Logger
}

// NewCache returns an empty cache.
func NewCache(opts ...CacheOption) *Cache {
	c := &Cache{
		entries:   make(map[int]*keystore.Keystore),
		idle:      DefaultIdleTimeout,
		afterFunc: SystemAfterFunc,
		logger:    logging.NewDiscard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Component("keystore-cache")
	return c
}

func (c *Cache) Get(id int) (*keystore.Keystore, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ks, ok := c.entries[id]
	return ks, ok
}

// Set stores ks and restarts the idle timer.
func (c *Cache) Set(id int, ks *keystore.Keystore) {
	if ks == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = ks
	c.scheduleLocked()
	metrics.SetCacheEntries(len(c.entries))
}

func (c *Cache) Delete(id int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[id]; ok {
		delete(c.entries, id)
		metrics.RecordCacheEviction(metrics.TriggerInvalidate, 1)
	}
	metrics.SetCacheEntries(len(c.entries))
}

// ClearAll evicts every entry and stops the idle timer.
func (c *Cache) ClearAll() {
	c.clear(metrics.TriggerExplicit)
}

// Prune evicts every entry whose id is not in allowed.
func (c *Cache) Prune(allowed []int) {
	keep := make(map[int]struct{}, len(allowed))
	for _, id := range allowed {
		keep[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for id := range c.entries {
		if _, ok := keep[id]; !ok {
			delete(c.entries, id)
			evicted++
		}
	}
	metrics.RecordCacheEviction(metrics.TriggerPrune, evicted)
	metrics.SetCacheEntries(len(c.entries))
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// EnsureLifecycleHandlers subscribes to the configured lifecycle sources.
// Only the first call registers; a source that fails to subscribe is
// skipped.
func (c *Cache) EnsureLifecycleHandlers() {
	c.mu.Lock()
	if c.registered {
		c.mu.Unlock()
		return
	}
	c.registered = true
	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	sources := c.sources
	c.mu.Unlock()

	for _, src := range sources {
		events, err := src.Subscribe(ctx)
		if err != nil {
			c.logger.Debug("lifecycle source unavailable", "error", err)
			continue
		}
		go func() {
			for ev := range events {
				c.HandleLifecycleEvent(ev)
			}
		}()
	}
}

// HandleLifecycleEvent evicts everything for events that mean the user
// left the application.
func (c *Cache) HandleLifecycleEvent(ev LifecycleEvent) {
	switch ev {
	case EventHidden:
		c.clear(metrics.TriggerHidden)
	case EventFocusLost:
		c.clear(metrics.TriggerFocusLost)
	}
}

// Close clears the cache and stops lifecycle handling.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	c.mu.Unlock()
	c.ClearAll()
	return nil
}

func (c *Cache) clear(trigger string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked(trigger)
}

func (c *Cache) clearLocked(trigger string) {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.generation++
	n := len(c.entries)
	if n > 0 {
		c.entries = make(map[int]*keystore.Keystore)
		c.logger.Debug("cache cleared", "trigger", trigger, "entries", n)
	}
	metrics.RecordCacheEviction(trigger, n)
	metrics.SetCacheEntries(0)
}

func (c *Cache) scheduleLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.generation++
	gen := c.generation
	c.timer = c.afterFunc(c.idle, func() { c.expire(gen) })
}

// expire ignores timers superseded by a later Set or clear.
func (c *Cache) expire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.clearLocked(metrics.TriggerIdle)
}
