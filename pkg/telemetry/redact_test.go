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

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type namedError struct{}

func (namedError) Error() string { return "named failure" }
func (namedError) Name() string  { return "SecureStorageWriteError" }

func TestIsSensitiveKey(t *testing.T) {
	sensitive := []string{"mnemonic", "Phrase", "keystoreJson", "SEED", "privateKey", "payload", "rawError", "clientSecret"}
	for _, key := range sensitive {
		assert.True(t, IsSensitiveKey(key), key)
	}

	plain := []string{"message", "reason", "action", "walletId", "platform"}
	for _, key := range plain {
		assert.False(t, IsSensitiveKey(key), key)
	}
}

func TestSanitizeMetadata_Redacts(t *testing.T) {
	got := SanitizeMetadata(map[string]any{
		"keystore": map[string]any{"crypto": "x"},
		"phrase":   "abandon abandon",
		"payload":  []any{1, 2},
		"raw":      nil,
		"message":  "kept",
	})

	assert.Equal(t, map[string]string{
		"keystore": RedactedMarker,
		"phrase":   RedactedMarker,
		"payload":  RedactedMarker,
		"raw":      RedactedMarker,
		"message":  "kept",
	}, got)
}

func TestSanitizeMetadata_Nested(t *testing.T) {
	got := SanitizeMetadata(map[string]any{
		"context": map[string]any{
			"action": "add",
			"seed":   "hidden",
			"inner":  map[string]string{"secretKey": "hidden", "ok": "yes"},
		},
	})

	assert.JSONEq(t, `{"action":"add","seed":"[redacted]","inner":{"secretKey":"[redacted]","ok":"yes"}}`, got["context"])
}

func TestSanitizeMetadata_Structs(t *testing.T) {
	type detail struct {
		Code       string `json:"code"`
		PrivateKey string `json:"privateKey"`
	}

	got := SanitizeMetadata(map[string]any{"detail": detail{Code: "E1", PrivateKey: "hidden"}})

	assert.JSONEq(t, `{"code":"E1","privateKey":"[redacted]"}`, got["detail"])
}

func TestSanitizeMetadata_Primitives(t *testing.T) {
	got := SanitizeMetadata(map[string]any{
		"count":   3,
		"enabled": true,
		"ratio":   0.5,
		"none":    nil,
		"":        "dropped",
	})

	assert.Equal(t, map[string]string{"count": "3", "enabled": "true", "ratio": "0.5"}, got)
}

func TestSanitizeMetadata_Errors(t *testing.T) {
	got := SanitizeMetadata(map[string]any{"error": namedError{}})
	assert.JSONEq(t, `{"name":"SecureStorageWriteError","message":"named failure"}`, got["error"])
}

func TestSanitizeMetadata_Unserializable(t *testing.T) {
	got := SanitizeMetadata(map[string]any{"fn": func() {}, "ch": make(chan int)})
	assert.Nil(t, got)
}

func TestSanitizeMetadata_Empty(t *testing.T) {
	assert.Nil(t, SanitizeMetadata(nil))
	assert.Nil(t, SanitizeMetadata(map[string]any{}))
	assert.Nil(t, SanitizeMetadata(map[string]any{"nothing": nil}))
}
