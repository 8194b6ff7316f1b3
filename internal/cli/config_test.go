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

package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "text", cfg.OutputFormat)
	assert.Empty(t, cfg.ConfigFile)
	assert.Empty(t, cfg.DataDir)
	assert.False(t, cfg.Verbose)
}

func TestConfig_LoadOverrides(t *testing.T) {
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.DataDir = dir
	cfg.Verbose = true

	loaded, err := cfg.Load()
	require.NoError(t, err)
	assert.Equal(t, dir, loaded.Storage.DataDir)
	assert.Equal(t, "debug", loaded.Logging.Level)
}

func TestConfig_LoadMissingFile(t *testing.T) {
	cfg := NewConfig()
	cfg.ConfigFile = "/nonexistent/walletstore.yaml"

	_, err := cfg.Load()
	assert.Error(t, err)
}
