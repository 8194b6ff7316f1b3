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

// Package observable provides a most-recent-value state holder that any
// number of goroutines may read and subscribe to.
package observable

import (
	"context"
	"sync"
)

// State holds a single value of type T. Subscribers always observe the
// latest value; intermediate values may be skipped by slow readers.
type State[T any] struct {
	mu     sync.RWMutex
	value  T
	subs   map[int]chan T
	nextID int
}

// New returns a State initialised with value.
func New[T any](value T) *State[T] {
	return &State[T]{value: value, subs: make(map[int]chan T)}
}

// Get returns the current value.
func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the current value and notifies subscribers.
func (s *State[T]) Set(value T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	for _, ch := range s.subs {
		offer(ch, value)
	}
}

// Update applies fn to the current value under the write lock.
func (s *State[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	for _, ch := range s.subs {
		offer(ch, s.value)
	}
	return s.value
}

// Subscribe returns a channel that immediately receives the current value
// and then every subsequent value. The channel is closed when ctx is done.
func (s *State[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.value
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Subscribers returns the number of live subscriptions.
func (s *State[T]) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// offer places v in the single slot of ch, replacing any unread value.
// Callers hold the state lock, so there is exactly one producer per channel.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
