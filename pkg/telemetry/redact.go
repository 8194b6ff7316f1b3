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
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// RedactedMarker replaces the value of every sensitive metadata key.
const RedactedMarker = "[redacted]"

var sensitiveTokens = []string{"mnemonic", "phrase", "keystore", "seed", "privatekey", "payload", "raw", "secret"}

// IsSensitiveKey reports whether key contains a sensitive token,
// case-insensitively.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, token := range sensitiveTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// SanitizeMetadata redacts sensitive keys at every nesting level and
// flattens values to strings. Nil values and values that cannot be
// serialised are dropped. It returns nil when nothing remains.
func SanitizeMetadata(metadata map[string]any) map[string]string {
	if len(metadata) == 0 {
		return nil
	}

	result := make(map[string]string, len(metadata))
	for key, value := range metadata {
		if key == "" {
			continue
		}
		if IsSensitiveKey(key) {
			result[key] = RedactedMarker
			continue
		}
		if s, ok := stringify(sanitizeValue(value)); ok {
			result[key] = s
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

type errorValue struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func sanitizeValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	case error:
		return errorValue{Name: errorName(v), Message: v.Error()}
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, entry := range v {
			if key == "" {
				continue
			}
			if IsSensitiveKey(key) {
				out[key] = RedactedMarker
				continue
			}
			out[key] = sanitizeValue(entry)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(v))
		for key, entry := range v {
			out[key] = entry
		}
		return sanitizeValue(out)
	case []any:
		out := make([]any, len(v))
		for i, entry := range v {
			out[i] = sanitizeValue(entry)
		}
		return out
	case fmt.Stringer:
		return v.String()
	}

	// Structs and other composites go through JSON so that nested keys are
	// subject to the same redaction.
	data, err := json.Marshal(value)
	if err != nil {
		return unserializable{}
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return unserializable{}
	}
	if m, ok := generic.(map[string]any); ok {
		return sanitizeValue(m)
	}
	if s, ok := generic.([]any); ok {
		return sanitizeValue(s)
	}
	return generic
}

type unserializable struct{}

func stringify(value any) (string, bool) {
	switch v := value.(type) {
	case nil, unserializable:
		return "", false
	case string:
		return v, true
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprint(v), true
	}
	data, err := json.Marshal(value)
	if err != nil {
		return "", false
	}
	return string(data), true
}

// errorName returns the dynamic type name of err without package path or
// pointer marker, or the Name() of errors that expose one.
func errorName(err error) string {
	var named interface{ Name() string }
	if errors.As(err, &named) {
		return named.Name()
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "Error"
	}
	return t.Name()
}
