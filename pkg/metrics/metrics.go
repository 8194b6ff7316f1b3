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

// Package metrics provides Prometheus instrumentation for go-walletstore.
// It exposes keystore operation counters and latencies, secure storage
// telemetry counters, runtime cache gauges and storage backend health.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all walletstore metrics
	Namespace = "walletstore"

	// Label names
	LabelOperation  = "operation"
	LabelStatus     = "status"
	LabelAction     = "action"
	LabelDeviceType = "device_type"
	LabelTrigger    = "trigger"
	LabelMode       = "mode"
	LabelBackend    = "backend"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpAdd              = "add"
	OpRemove           = "remove"
	OpChange           = "change"
	OpRename           = "rename"
	OpImport           = "import"
	OpExport           = "export"
	OpLoad             = "load"
	OpLock             = "lock"
	OpUnlock           = "unlock"
	OpValidatePassword = "validate_password"
	OpReload           = "reload"
	OpPersist          = "persist"
	OpHealthCheck      = "health_check"

	// Cache eviction triggers
	TriggerIdle       = "idle"
	TriggerHidden     = "hidden"
	TriggerFocusLost  = "focus_lost"
	TriggerExplicit   = "explicit"
	TriggerPrune      = "prune"
	TriggerInvalidate = "invalidate"
)

var (
	// OperationsTotal tracks keystore service operations by name and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of keystore operations by type and status",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// OperationDuration tracks the duration of keystore operations in seconds.
	// Buckets cover both cache hits and full KDF runs.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of keystore operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelOperation},
	)

	// SecureStorageEventsTotal counts secure storage telemetry events.
	SecureStorageEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "secure_storage",
			Name:      "events_total",
			Help:      "Total number of secure storage telemetry events by action and device type",
		},
		[]string{LabelAction, LabelDeviceType},
	)

	// CacheEvictionsTotal counts runtime cache evictions by trigger.
	CacheEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Total number of runtime keystore cache evictions by trigger",
		},
		[]string{LabelTrigger},
	)

	// CacheEntries tracks the number of keystores held by the runtime cache.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Number of keystores held by the runtime cache",
		},
	)

	// WalletsTotal tracks the persisted wallet count per storage mode.
	WalletsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "wallets_total",
			Help:      "Number of persisted wallets by storage mode",
		},
		[]string{LabelMode},
	)

	// BackendHealthy indicates whether a storage backend is healthy (1) or unhealthy (0).
	BackendHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "backend_healthy",
			Help:      "Indicates whether a storage backend is healthy (1) or unhealthy (0)",
		},
		[]string{LabelBackend},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records a keystore operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	err := svc.Unlock(ctx, password)
//	metrics.RecordOperation(metrics.OpUnlock, metrics.StatusOf(err), time.Since(start).Seconds())
func RecordOperation(operation, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(duration)
}

// StatusOf maps an operation error to a status label value.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordSecureStorageEvent counts a secure storage telemetry event.
func RecordSecureStorageEvent(action, deviceType string) {
	if !enabled.Load() {
		return
	}
	SecureStorageEventsTotal.WithLabelValues(action, deviceType).Inc()
}

// RecordCacheEviction counts an eviction of n entries for the given trigger.
// Evictions of an empty cache are not counted.
func RecordCacheEviction(trigger string, n int) {
	if !enabled.Load() || n <= 0 {
		return
	}
	CacheEvictionsTotal.WithLabelValues(trigger).Add(float64(n))
}

// SetCacheEntries sets the current runtime cache size.
func SetCacheEntries(n int) {
	if !enabled.Load() {
		return
	}
	CacheEntries.Set(float64(n))
}

// SetWalletsTotal sets the wallet count for a storage mode.
func SetWalletsTotal(mode string, count int) {
	if !enabled.Load() {
		return
	}
	WalletsTotal.WithLabelValues(mode).Set(float64(count))
}

// SetBackendHealth sets the health status of a backend.
// healthy=true sets the gauge to 1, healthy=false sets it to 0.
func SetBackendHealth(backend string, healthy bool) {
	if !enabled.Load() {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	BackendHealthy.WithLabelValues(backend).Set(value)
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
