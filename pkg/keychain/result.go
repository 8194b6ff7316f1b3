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

package keychain

import "context"

// Status is the stage of a progressive operation.
type Status int

const (
	// StatusInitial means nothing happened, e.g. a cancelled dialog.
	StatusInitial Status = iota
	StatusPending
	StatusSuccess
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusInitial:
		return "initial"
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is one value of a progressive operation.
type Result[T any] struct {
	Status Status
	Value  T
	Err    error
}

func Initial[T any]() Result[T] { return Result[T]{Status: StatusInitial} }
func Pending[T any]() Result[T] { return Result[T]{Status: StatusPending} }
func Success[T any](v T) Result[T] { return Result[T]{Status: StatusSuccess, Value: v} }
func Failure[T any](err error) Result[T] { return Result[T]{Status: StatusFailure, Err: err} }

func (r Result[T]) IsPending() bool { return r.Status == StatusPending }
func (r Result[T]) IsSuccess() bool { return r.Status == StatusSuccess }
func (r Result[T]) IsFailure() bool { return r.Status == StatusFailure }

// Await drains ch and returns its last value. A done ctx yields a failure.
func Await[T any](ctx context.Context, ch <-chan Result[T]) Result[T] {
	last := Initial[T]()
	for {
		select {
		case <-ctx.Done():
			return Failure[T](ctx.Err())
		case r, ok := <-ch:
			if !ok {
				return last
			}
			last = r
		}
	}
}

// progressive emits Pending, runs fn in a goroutine and emits its result.
// The channel is buffered for both values so an abandoned reader never
// blocks fn.
func progressive[T any](fn func() Result[T]) <-chan Result[T] {
	ch := make(chan Result[T], 2)
	ch <- Pending[T]()
	go func() {
		defer close(ch)
		ch <- fn()
	}()
	return ch
}

// immediate emits a single terminal value.
func immediate[T any](r Result[T]) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	ch <- r
	close(ch)
	return ch
}
