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

// Package ratelimit throttles password attempts against wallet keystores.
//
// Each wallet gets its own token bucket, so a burst of wrong passwords
// against one wallet does not lock out the others. Buckets of wallets that
// have been idle longer than MaxIdle are dropped lazily.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter implements a token bucket rate limiter with per-wallet tracking.
// A nil *Limiter allows everything.
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	enabled  bool
	maxIdle  time.Duration
	now      func() time.Time
}

// Config holds rate limiter configuration.
type Config struct {
	// Enabled controls whether rate limiting is active.
	Enabled bool

	// AttemptsPerMinute sets the sustained attempt rate.
	AttemptsPerMinute int

	// Burst allows short bursts above the sustained rate.
	// If not set, defaults to AttemptsPerMinute.
	Burst int

	// MaxIdle is how long a wallet's bucket is kept without attempts.
	// Defaults to 30 minutes.
	MaxIdle time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// New creates a new rate limiter with the given configuration. A nil config
// or a non-positive AttemptsPerMinute yields a disabled limiter.
func New(config *Config) *Limiter {
	if config == nil {
		config = &Config{Enabled: false}
	}

	burst := config.Burst
	if burst <= 0 {
		burst = config.AttemptsPerMinute
	}

	maxIdle := config.MaxIdle
	if maxIdle == 0 {
		maxIdle = 30 * time.Minute
	}

	now := config.Now
	if now == nil {
		now = time.Now
	}

	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(float64(config.AttemptsPerMinute) / 60.0),
		burst:    burst,
		enabled:  config.Enabled && config.AttemptsPerMinute > 0,
		maxIdle:  maxIdle,
		now:      now,
	}
}

// Allow consumes one attempt for key and reports whether it is within the
// limit.
func (l *Limiter) Allow(key string) bool {
	if !l.IsEnabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanupLocked(now)

	limiter, exists := l.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(l.rate, l.burst)
		l.limiters[key] = limiter
	}
	l.lastSeen[key] = now
	return limiter.AllowN(now, 1)
}

// Reset forgets the attempts recorded for key. Call it after a successful
// attempt so earlier failures stop counting.
func (l *Limiter) Reset(key string) {
	if !l.IsEnabled() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
	delete(l.lastSeen, key)
}

// cleanupLocked removes buckets that haven't seen attempts recently.
func (l *Limiter) cleanupLocked(now time.Time) {
	for key, lastSeen := range l.lastSeen {
		if now.Sub(lastSeen) > l.maxIdle {
			delete(l.limiters, key)
			delete(l.lastSeen, key)
		}
	}
}

// Stats returns current rate limiter statistics.
func (l *Limiter) Stats() map[string]interface{} {
	if l == nil {
		return map[string]interface{}{"enabled": false}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	return map[string]interface{}{
		"enabled":         l.enabled,
		"tracked_wallets": len(l.limiters),
		"rate_per_min":    float64(l.rate) * 60,
		"burst":           l.burst,
	}
}

// IsEnabled returns whether rate limiting is enabled.
func (l *Limiter) IsEnabled() bool {
	return l != nil && l.enabled
}
