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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
)

func TestParseFlag(t *testing.T) {
	tests := []struct {
		in     string
		want   bool
		wantOK bool
	}{
		{"true", true, true},
		{" TRUE ", true, true},
		{"1", true, true},
		{"false", false, true},
		{"False", false, true},
		{"0", false, true},
		{"", false, false},
		{"yes", false, false},
		{"2", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseFlag(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlatform_SecureStorageRequired(t *testing.T) {
	tests := []struct {
		name string
		p    PlatformConfig
		want bool
	}{
		{"explicit true on desktop", PlatformConfig{DeviceType: "desktop", SecureStorageEnabled: "1"}, true},
		{"explicit false on production mobile", PlatformConfig{DeviceType: "ios", Environment: "production", SecureStorageEnabled: "false"}, false},
		{"default production mobile", PlatformConfig{DeviceType: "android", Environment: "production"}, true},
		{"default production desktop", PlatformConfig{DeviceType: "desktop", Environment: "production"}, false},
		{"default development mobile", PlatformConfig{DeviceType: "ios", Environment: "development"}, false},
		{"unrecognized falls back", PlatformConfig{DeviceType: "ios", Environment: " Production ", SecureStorageEnabled: "on"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.SecureStorageRequired())
		})
	}
}

func TestPlatform_BiometricFeatureEnabled(t *testing.T) {
	assert.True(t, PlatformConfig{}.BiometricFeatureEnabled())
	assert.True(t, PlatformConfig{BiometricEnabled: "0"}.BiometricFeatureEnabled())
	assert.True(t, PlatformConfig{BiometricEnabled: "FALSE"}.BiometricFeatureEnabled())
	assert.False(t, PlatformConfig{BiometricEnabled: "false"}.BiometricFeatureEnabled())
}

func TestPlatform_Policy(t *testing.T) {
	p := PlatformConfig{DeviceType: "iPhone", Environment: "production", BiometricEnabled: "true"}
	policy := p.Policy()
	assert.True(t, policy.Mobile)
	assert.True(t, policy.BiometricEnabled)
	assert.True(t, policy.SecureStorageRequired)
	assert.True(t, policy.ShouldBlockOnSecureFailure())
	assert.Equal(t, telemetry.DeviceIOS, p.Device())
}

func TestLoadPlatform(t *testing.T) {
	t.Setenv("ASGARDEX_DEVICE_TYPE", "android")
	t.Setenv("ASGARDEX_APP_VERSION", "3.1.0")
	t.Setenv("ASGARDEX_ENV", "production")
	t.Setenv("ASGARDEX_SECURE_STORAGE_ENABLED", "0")
	t.Setenv("ASGARDEX_BIOMETRIC_ENABLED", "false")

	p, err := LoadPlatform()
	require.NoError(t, err)
	assert.Equal(t, "3.1.0", p.AppVersion)
	assert.True(t, p.Mobile())
	assert.True(t, p.Production())
	assert.False(t, p.SecureStorageRequired())
	assert.False(t, p.BiometricFeatureEnabled())
}

func TestLoadPlatform_Defaults(t *testing.T) {
	p, err := LoadPlatform()
	require.NoError(t, err)
	assert.Equal(t, DefaultPlatform().AppVersion, p.AppVersion)
	assert.True(t, p.BiometricFeatureEnabled())
	assert.False(t, p.Mobile())
}
