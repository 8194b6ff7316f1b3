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

package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/jeremyhahn/go-walletstore/pkg/biometric"
	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
)

// PlatformEnvPrefix prefixes every platform variable.
const PlatformEnvPrefix = "ASGARDEX"

// PlatformConfig holds the platform flags supplied by the host application.
// The flags are kept as raw strings so unset and unrecognized values can be
// told apart.
type PlatformConfig struct {
	DeviceType           string `envconfig:"DEVICE_TYPE" default:"desktop"`
	AppVersion           string `envconfig:"APP_VERSION" default:"dev"`
	Environment          string `envconfig:"ENV" default:"development"`
	SecureStorageEnabled string `envconfig:"SECURE_STORAGE_ENABLED"`
	BiometricEnabled     string `envconfig:"BIOMETRIC_ENABLED" default:"true"`
}

// DefaultPlatform returns the platform flags of a desktop development build.
func DefaultPlatform() PlatformConfig {
	return PlatformConfig{
		DeviceType:       string(telemetry.DeviceDesktop),
		AppVersion:       telemetry.DefaultAppVersion,
		Environment:      "development",
		BiometricEnabled: "true",
	}
}

// LoadPlatform reads ASGARDEX_* environment variables.
func LoadPlatform() (PlatformConfig, error) {
	var p PlatformConfig
	if err := envconfig.Process(PlatformEnvPrefix, &p); err != nil {
		return PlatformConfig{}, fmt.Errorf("failed to process platform config: %w", err)
	}
	return p, nil
}

// Device returns the normalized device type.
func (p PlatformConfig) Device() telemetry.DeviceType {
	return telemetry.ParseDeviceType(p.DeviceType)
}

// Mobile reports whether the device is a phone or tablet.
func (p PlatformConfig) Mobile() bool {
	return p.Device().IsMobile()
}

// Production reports whether the host runs a production build.
func (p PlatformConfig) Production() bool {
	return strings.EqualFold(strings.TrimSpace(p.Environment), "production")
}

// SecureStorageRequired resolves the secure-storage-required flag. Unset or
// unrecognized values fall back to production && mobile.
func (p PlatformConfig) SecureStorageRequired() bool {
	if v, ok := ParseFlag(p.SecureStorageEnabled); ok {
		return v
	}
	return p.Production() && p.Mobile()
}

// BiometricFeatureEnabled reports the biometric feature flag. Only the exact
// value "false" disables it.
func (p PlatformConfig) BiometricFeatureEnabled() bool {
	return p.BiometricEnabled != "false"
}

// Policy returns the biometric bridge policy for this platform.
func (p PlatformConfig) Policy() biometric.Policy {
	return biometric.Policy{
		BiometricEnabled:      p.BiometricFeatureEnabled(),
		SecureStorageRequired: p.SecureStorageRequired(),
		Mobile:                p.Mobile(),
	}
}

// ParseFlag normalizes true/1/false/0, case-insensitively and trimmed.
// ok is false for anything else.
func ParseFlag(value string) (v bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}
