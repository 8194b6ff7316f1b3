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

// Package correlation tags wallet operations with an id that follows the
// operation through the service, storage resolver and persistence logs.
package correlation

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// IDPrefix marks ids minted by NewID.
const IDPrefix = "op-"

type ctxKey struct{}

// WithID returns ctx tagged with id. An empty id clears any inherited one.
func WithID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// ID returns the operation id carried by ctx, or "".
func ID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// NewID mints a short operation id: IDPrefix followed by the first twelve
// hex digits of a random UUID.
func NewID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return IDPrefix + raw[:12]
}

// Ensure returns ctx tagged with an operation id, minting one when ctx has
// none, along with that id. Nested operations keep the outer id.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := ID(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithID(ctx, id), id
}
