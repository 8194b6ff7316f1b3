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

package storage

import (
	"slices"
	"strings"
	"sync"
)

// Op names a Backend operation for fault injection.
type Op string

const (
	OpGet    Op = "get"
	OpPut    Op = "put"
	OpDelete Op = "delete"
	OpList   Op = "list"
	OpExists Op = "exists"
)

// MemoryBackend keeps keys in a map. Faults can be injected per operation
// to exercise the error paths of the stores built on top of it.
type MemoryBackend struct {
	mu     sync.RWMutex
	data   map[string][]byte
	faults map[Op]error
	closed bool
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *MemoryBackend {
	return &MemoryBackend{
		data:   make(map[string][]byte),
		faults: make(map[Op]error),
	}
}

// Fail makes every later op return err until cleared with a nil err.
func (m *MemoryBackend) Fail(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

// check returns the error op must fail with. Callers hold mu.
func (m *MemoryBackend) check(op Op) error {
	if m.closed {
		return ErrClosed
	}
	return m.faults[op]
}

func (m *MemoryBackend) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(OpGet); err != nil {
		return nil, err
	}
	value, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(value), nil
}

func (m *MemoryBackend) Put(key string, value []byte, _ *Options) error {
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(OpPut); err != nil {
		return err
	}
	m.data[key] = slices.Clone(value)
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(OpDelete); err != nil {
		return err
	}
	if _, ok := m.data[key]; !ok {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryBackend) List(prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(OpList); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *MemoryBackend) Exists(key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(OpExists); err != nil {
		return false, err
	}
	_, ok := m.data[key]
	return ok, nil
}

// Close drops all keys. Closing twice is a no-op.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}
