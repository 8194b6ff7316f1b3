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

package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthy(ctx context.Context) CheckResult { return CheckResult{Status: StatusHealthy} }

func TestRegisterCheck(t *testing.T) {
	checker := NewChecker()
	checker.RegisterCheck("b", healthy)
	checker.RegisterCheck("a", healthy)
	checker.RegisterCheck("nil", nil)

	assert.Equal(t, []string{"a", "b"}, checker.Names())
}

func TestRun_OrdersAndNamesResults(t *testing.T) {
	checker := NewChecker()
	checker.RegisterCheck("zeta", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded}
	})
	checker.RegisterCheck("alpha", func(ctx context.Context) CheckResult {
		return CheckResult{Name: "alpha", Status: StatusHealthy}
	})

	results := checker.Run(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Name)
	assert.Equal(t, "zeta", results[1].Name)
	assert.Equal(t, StatusDegraded, AggregateStatus(results))
	assert.False(t, checker.IsHealthy(context.Background()))
}

func TestRun_NoChecks(t *testing.T) {
	checker := NewChecker()
	assert.Empty(t, checker.Run(context.Background()))
	assert.True(t, checker.IsHealthy(context.Background()))
}

func TestRun_Timeout(t *testing.T) {
	checker := NewChecker(WithTimeout(20 * time.Millisecond))
	checker.RegisterCheck("keyring", func(ctx context.Context) CheckResult {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		return CheckResult{Status: StatusHealthy}
	})

	results := checker.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusUnhealthy, results[0].Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), results[0].Error)
	assert.Equal(t, "keyring", results[0].Name)
}

func TestRun_Panic(t *testing.T) {
	checker := NewChecker()
	checker.RegisterCheck("broken", func(ctx context.Context) CheckResult {
		panic("boom")
	})

	results := checker.Run(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, StatusUnhealthy, results[0].Status)
	assert.Contains(t, results[0].Error, "boom")
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
		{"unhealthy first", []Status{StatusUnhealthy, StatusDegraded}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]CheckResult, len(tt.statuses))
			for i, s := range tt.statuses {
				results[i] = CheckResult{Status: s}
			}
			assert.Equal(t, tt.want, AggregateStatus(results))
		})
	}
}
