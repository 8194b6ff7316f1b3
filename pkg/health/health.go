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

// Package health reports whether the wallet store can serve requests: the
// storage backend answers, the wallet list decodes and secure storage is
// reachable.
package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jeremyhahn/go-walletstore/pkg/metrics"
)

// DefaultTimeout bounds a single check. OS keychain calls over D-Bus can
// block indefinitely when no secret service is running.
const DefaultTimeout = 5 * time.Second

// Status is the outcome of a check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	// StatusDegraded means the store works with reduced guarantees, e.g.
	// new wallets fall back to legacy storage.
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name    string        `json:"name"`
	Status  Status        `json:"status"`
	Message string        `json:"message,omitempty"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// CheckFunc performs one check. It should honor ctx.
type CheckFunc func(ctx context.Context) CheckResult

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout overrides DefaultTimeout. A non-positive d disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Checker) { c.timeout = d }
}

// Checker runs registered checks concurrently.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		checks:  make(map[string]CheckFunc),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterCheck adds check under name, replacing any previous one. A nil
// check is ignored.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Names returns the registered check names, sorted.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every check and returns the results sorted by name. A check
// that overruns the timeout or panics is reported unhealthy.
func (c *Checker) Run(ctx context.Context) []CheckResult {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	start := time.Now()
	results := make([]CheckResult, 0, len(checks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, check := range checks {
		name, check := name, check
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.runOne(ctx, name, check)
			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })

	status := metrics.StatusSuccess
	if AggregateStatus(results) == StatusUnhealthy {
		status = metrics.StatusError
	}
	metrics.RecordOperation(metrics.OpHealthCheck, status, time.Since(start).Seconds())
	return results
}

func (c *Checker) runOne(ctx context.Context, name string, check CheckFunc) CheckResult {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan CheckResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- CheckResult{Status: StatusUnhealthy, Error: fmt.Sprintf("check panicked: %v", r)}
			}
		}()
		done <- check(ctx)
	}()

	var result CheckResult
	select {
	case result = <-done:
	case <-ctx.Done():
		result = CheckResult{Status: StatusUnhealthy, Error: ctx.Err().Error()}
	}
	result.Latency = time.Since(start)
	if result.Name == "" {
		result.Name = name
	}
	return result
}

// IsHealthy runs the checks and reports whether all of them are healthy.
func (c *Checker) IsHealthy(ctx context.Context) bool {
	return AggregateStatus(c.Run(ctx)) == StatusHealthy
}

// AggregateStatus returns the worst status among results. No results is
// healthy.
func AggregateStatus(results []CheckResult) Status {
	worst := StatusHealthy
	for _, r := range results {
		if r.Status.severity() > worst.severity() {
			worst = r.Status
		}
	}
	return worst
}
