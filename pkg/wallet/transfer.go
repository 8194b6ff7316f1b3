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
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
	"github.com/jeremyhahn/go-walletstore/pkg/storage"
	"github.com/jeremyhahn/go-walletstore/pkg/storage/file"
)

// Exporter hands a keystore to the platform save flow. It returns the
// destination, or "" when the user cancelled.
type Exporter interface {
	Export(ctx context.Context, fileName string, ks *keystore.Keystore) (string, error)
}

// ExporterFunc adapts a function to an Exporter.
type ExporterFunc func(ctx context.Context, fileName string, ks *keystore.Keystore) (string, error)

// Export calls f.
func (f ExporterFunc) Export(ctx context.Context, fileName string, ks *keystore.Keystore) (string, error) {
	return f(ctx, fileName, ks)
}

// Loader opens a keystore chosen by the user. It returns nil, nil when the
// user cancelled.
type Loader interface {
	Load(ctx context.Context) (*keystore.Keystore, error)
}

// LoaderFunc adapts a function to a Loader.
type LoaderFunc func(ctx context.Context) (*keystore.Keystore, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (*keystore.Keystore, error) {
	return f(ctx)
}

// DirExporter writes exported keystores into a directory.
type DirExporter struct {
	Dir string
}

func (e DirExporter) Export(ctx context.Context, fileName string, ks *keystore.Keystore) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.Dir == "" {
		return "", nil
	}
	data, err := ks.Marshal()
	if err != nil {
		return "", fmt.Errorf("wallet: encode export: %w", err)
	}
	fs, err := file.New(e.Dir)
	if err != nil {
		return "", err
	}
	defer func() { _ = fs.Close() }()

	if err := fs.Put(fileName, data, storage.DefaultOptions()); err != nil {
		return "", fmt.Errorf("wallet: export: %w", err)
	}
	return filepath.Join(fs.Root(), fileName), nil
}

// PathLoader reads a keystore file. An empty Path is a cancelled dialog.
type PathLoader struct {
	Path string
}

func (l PathLoader) Load(ctx context.Context) (*keystore.Keystore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("wallet: keystore file %s does not exist", l.Path)
		}
		return nil, fmt.Errorf("wallet: read keystore: %w", err)
	}
	return keystore.Parse(data)
}
