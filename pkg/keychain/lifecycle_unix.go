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

//go:build unix

package keychain

import (
	"os"
	"syscall"
)

// SIGHUP: the controlling terminal went away. SIGUSR1: sent by a host
// process when its window loses focus.
func defaultLifecycleSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP, syscall.SIGUSR1}
}
