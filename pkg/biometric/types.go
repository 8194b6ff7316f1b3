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

// Package biometric decides whether secure storage writes may require
// biometric authentication and reports silent downgrades of that guarantee
// through a single-slot notice channel.
package biometric

import (
	"context"
	"errors"
	"sync"
)

// Reason explains why a biometric guarantee was downgraded.
type Reason string

const (
	ReasonNotEnrolled       Reason = "biometryNotEnrolled"
	ReasonNotAvailable      Reason = "biometryNotAvailable"
	ReasonPasscodeNotSet    Reason = "passcodeNotSet"
	ReasonStatusError       Reason = "statusError"
	ReasonPluginUnavailable Reason = "pluginUnavailable"
)

// Valid reports whether r is a known reason.
func (r Reason) Valid() bool {
	switch r {
	case ReasonNotEnrolled, ReasonNotAvailable, ReasonPasscodeNotSet, ReasonStatusError, ReasonPluginUnavailable:
		return true
	}
	return false
}

// Surface is the screen a notice is shown on.
type Surface string

const (
	SurfaceOnboarding Surface = "onboarding"
	SurfaceUnlock     Surface = "unlock"
)

// PendingSecureKeyID is used for notices raised before a secure entry exists.
const PendingSecureKeyID = "pending"

// Notice tells the UI that a biometric guarantee was silently downgraded.
type Notice struct {
	Reason      Reason  `json:"reason"`
	Surface     Surface `json:"surface"`
	SecureKeyID string  `json:"secureKeyId"`
}

// Status is the result of a plugin status check.
type Status struct {
	IsAvailable bool
	ErrorCode   string
}

// ReasonFromStatus maps a status to a downgrade reason. It returns false
// when biometrics are fully available.
func ReasonFromStatus(s Status) (Reason, bool) {
	code := Reason(s.ErrorCode)
	enrollment := code == ReasonNotEnrolled || code == ReasonPasscodeNotSet || code == ReasonNotAvailable
	if s.IsAvailable && !enrollment {
		return "", false
	}
	if enrollment {
		return code, true
	}
	return ReasonNotAvailable, true
}

// Plugin is the platform biometric plugin.
type Plugin interface {
	CheckStatus(ctx context.Context) (Status, error)
}

// PluginFunc adapts a function to a Plugin.
type PluginFunc func(ctx context.Context) (Status, error)

// CheckStatus calls f.
func (f PluginFunc) CheckStatus(ctx context.Context) (Status, error) {
	return f(ctx)
}

// PluginLoader loads the platform plugin.
type PluginLoader func(ctx context.Context) (Plugin, error)

// ErrPluginUnavailable is returned when no platform plugin can be loaded.
var ErrPluginUnavailable = errors.New("biometric: plugin unavailable")

var (
	registryMu sync.RWMutex
	registered PluginLoader
)

// Register installs the loader used by LoadRegistered. Platform builds call
// it from an init function.
func Register(loader PluginLoader) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registered = loader
}

// LoadRegistered loads the registered platform plugin.
func LoadRegistered(ctx context.Context) (Plugin, error) {
	registryMu.RLock()
	loader := registered
	registryMu.RUnlock()
	if loader == nil {
		return nil, ErrPluginUnavailable
	}
	return loader(ctx)
}

// Policy holds the platform flags that drive the bridge.
type Policy struct {
	// BiometricEnabled is the biometric feature flag.
	BiometricEnabled bool
	// SecureStorageRequired is the secure-storage-required policy flag.
	SecureStorageRequired bool
	// Mobile reports whether the device is a phone or tablet.
	Mobile bool
}

// ShouldBlockOnSecureFailure reports whether a failed secure write must stop
// wallet creation. Desktop is never blocked.
func (p Policy) ShouldBlockOnSecureFailure() bool {
	return p.SecureStorageRequired && p.Mobile
}
