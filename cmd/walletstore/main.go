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

package main

import (
	"github.com/awnumar/memguard"

	"github.com/jeremyhahn/go-walletstore/internal/cli"
)

func main() {
	// Wipe enclaves holding unlocked phrases on interrupt
	memguard.CatchInterrupt()

	if err := cli.Execute(); err != nil {
		memguard.SafeExit(1)
	}
	memguard.Purge()
}
