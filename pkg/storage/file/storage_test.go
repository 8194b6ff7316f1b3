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

package file

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-walletstore/pkg/storage"
)

// Helper to create a temporary directory for tests
func setupTestDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

func TestNew(t *testing.T) {
	t.Run("valid directory", func(t *testing.T) {
		store, err := New(setupTestDir(t))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}

		keys, err := store.List("")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(keys) != 0 {
			t.Errorf("New store should be empty, got %d keys", len(keys))
		}
	})

	t.Run("creates directory if not exists", func(t *testing.T) {
		newDir := filepath.Join(setupTestDir(t), "subdir", "nested")

		if _, err := New(newDir); err != nil {
			t.Fatalf("New() error = %v", err)
		}

		info, err := os.Stat(newDir)
		if err != nil {
			t.Fatalf("Directory not created: %v", err)
		}
		if !info.IsDir() {
			t.Error("Created path is not a directory")
		}
		if perm := info.Mode().Perm(); perm != defaultDirPerms {
			t.Errorf("Directory permissions = %o, want %o", perm, defaultDirPerms)
		}
	})

	t.Run("empty directory", func(t *testing.T) {
		if _, err := New(""); err == nil {
			t.Error("New(\"\") should return error")
		}
	})
}

func TestFileStorage_PutGet(t *testing.T) {
	tests := []struct {
		name string
		key  string
		opts *storage.Options
	}{
		{name: "plain write", key: "wallets.json"},
		{name: "atomic write", key: "wallets.json", opts: storage.DefaultOptions()},
		{name: "nested key", key: "secure/asgardex-keystore-1.json", opts: storage.DefaultOptions()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(setupTestDir(t))
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			value := []byte(`{"hello":"world"}`)
			if err := store.Put(tt.key, value, tt.opts); err != nil {
				t.Fatalf("Put() error = %v", err)
			}

			got, err := store.Get(tt.key)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !bytes.Equal(got, value) {
				t.Errorf("Get() = %s, want %s", got, value)
			}

			info, err := os.Stat(filepath.Join(store.Root(), filepath.FromSlash(tt.key)))
			if err != nil {
				t.Fatalf("Stat() error = %v", err)
			}
			if perm := info.Mode().Perm(); perm != defaultPerms {
				t.Errorf("File permissions = %o, want %o", perm, defaultPerms)
			}
		})
	}
}

func TestFileStorage_AtomicOverwrite(t *testing.T) {
	store, err := New(setupTestDir(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.Put("wallets.json", []byte(fmt.Sprintf("v%d", i)), storage.DefaultOptions()); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	got, err := store.Get("wallets.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Get() = %s, want v2", got)
	}

	keys, err := store.List("")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != "wallets.json" {
		t.Errorf("List() = %v, want [wallets.json] (no temp files)", keys)
	}
}

func TestFileStorage_GetNotFound(t *testing.T) {
	store, err := New(setupTestDir(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := store.Get("missing.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestFileStorage_Delete(t *testing.T) {
	store, err := New(setupTestDir(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := store.Put("keystore.json", []byte("x"), nil); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Delete("keystore.json"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	exists, err := store.Exists("keystore.json")
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if exists {
		t.Error("key still exists after Delete()")
	}

	if err := store.Delete("keystore.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestFileStorage_ListPrefix(t *testing.T) {
	store, err := New(setupTestDir(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, key := range []string{"secure/b.json", "wallets.json", "secure/a.json"} {
		if err := store.Put(key, []byte("x"), nil); err != nil {
			t.Fatalf("Put(%s) error = %v", key, err)
		}
	}

	keys, err := store.List(storage.SecurePrefix)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"secure/a.json", "secure/b.json"}
	if fmt.Sprint(keys) != fmt.Sprint(want) {
		t.Errorf("List() = %v, want %v", keys, want)
	}
}

func TestFileStorage_RejectsTraversal(t *testing.T) {
	store, err := New(setupTestDir(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for _, key := range []string{"../escape.json", "/etc/passwd", "a/../../b"} {
		if err := store.Put(key, []byte("x"), nil); !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("Put(%q) error = %v, want ErrInvalidKey", key, err)
		}
		if _, err := store.Get(key); !errors.Is(err, storage.ErrInvalidKey) {
			t.Errorf("Get(%q) error = %v, want ErrInvalidKey", key, err)
		}
	}
}

func TestFileStorage_Concurrent(t *testing.T) {
	store, err := New(setupTestDir(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("secure/entry-%d.json", i)
			if err := store.Put(key, []byte("x"), storage.DefaultOptions()); err != nil {
				t.Errorf("Put() error = %v", err)
				return
			}
			if _, err := store.Get(key); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	ids, err := storage.ListSecureEntries(store)
	if err != nil {
		t.Fatalf("ListSecureEntries() error = %v", err)
	}
	if len(ids) != 20 {
		t.Errorf("ListSecureEntries() returned %d ids, want 20", len(ids))
	}
}
