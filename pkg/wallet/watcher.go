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

package wallet

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jeremyhahn/go-walletstore/pkg/logging"
	"github.com/jeremyhahn/go-walletstore/pkg/storage"
)

// DefaultDebounce coalesces bursts of file events into one signal.
const DefaultDebounce = 250 * time.Millisecond

// Watcher signals changes to the wallet list file made by other processes.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   *logging.Logger
}

// NewWatcher returns a watcher for the wallet list in dir.
func NewWatcher(dir string, debounce time.Duration, logger *logging.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Watcher{dir: dir, debounce: debounce, logger: logger.Component("wallet-watcher")}
}

// Watch starts watching. The returned channel receives a value after each
// debounced burst of changes and is closed when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	// Watch the directory; atomic writes replace the file itself.
	if err := fw.Add(w.dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch wallet directory: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() { _ = fw.Close() }()

		var timer *time.Timer
		var fire <-chan time.Time
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != storage.WalletListKey {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}

			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("file watcher error", "error", err)
			}
		}
	}()

	return out, nil
}
