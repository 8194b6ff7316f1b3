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

// Package validation provides input validation for wallet names, secure
// storage identifiers and export file names. The keystore service and the
// secure storage backends call it before anything reaches disk or the OS
// keychain.
package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxWalletNameLength bounds display names.
	MaxWalletNameLength = 128

	// MaxSecureKeyIDLength bounds secure storage identifiers.
	MaxSecureKeyIDLength = 255

	// DefaultFileSegment replaces a file name segment that sanitizes to nothing.
	DefaultFileSegment = "keystore"
)

var (
	// secureKeyIDPattern matches opaque identifiers usable as file names and keychain accounts
	secureKeyIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

	unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_\-\.]+`)
)

// ValidateWalletName validates a wallet display name.
func ValidateWalletName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("wallet name cannot be empty")
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("wallet name is not valid UTF-8")
	}

	if utf8.RuneCountInString(name) > MaxWalletNameLength {
		return fmt.Errorf("wallet name too long (max %d characters)", MaxWalletNameLength)
	}

	if containsControl(name) {
		return fmt.Errorf("wallet name contains control characters")
	}

	return nil
}

// ValidateWalletID validates a wallet list identifier.
func ValidateWalletID(id int) error {
	if id <= 0 {
		return fmt.Errorf("wallet id must be a positive integer, got %d", id)
	}
	return nil
}

// ValidateSecureKeyID validates a secure storage identifier.
// Prevents path traversal and injection by:
// - Rejecting empty strings
// - Rejecting null bytes and control characters
// - Rejecting absolute paths and parent directory references
// - Allowing only safe characters
// - Enforcing length limits
func ValidateSecureKeyID(id string) error {
	if id == "" {
		return fmt.Errorf("secure key ID cannot be empty")
	}

	// Check for null bytes (can bypass some path checks)
	if strings.Contains(id, "\x00") {
		return fmt.Errorf("secure key ID contains null byte")
	}

	// Check length before other validations (prevent ReDoS)
	if len(id) > MaxSecureKeyIDLength {
		return fmt.Errorf("secure key ID too long (max %d characters)", MaxSecureKeyIDLength)
	}

	if filepath.IsAbs(id) {
		return fmt.Errorf("secure key ID cannot be an absolute path")
	}

	if id == "." || id == ".." || strings.Contains(id, "..") {
		return fmt.Errorf("secure key ID contains path traversal attempt")
	}

	if containsControl(id) {
		return fmt.Errorf("secure key ID contains control characters")
	}

	if !secureKeyIDPattern.MatchString(id) {
		return fmt.Errorf("secure key ID contains invalid characters (allowed: a-z, A-Z, 0-9, -, _, .)")
	}

	return nil
}

// SanitizeFileSegment turns a display name into a safe file name segment.
// Runs of unsafe characters collapse to a single hyphen; an empty result
// falls back to DefaultFileSegment.
func SanitizeFileSegment(name string) string {
	s := unsafeFileChars.ReplaceAllString(strings.TrimSpace(name), "-")
	s = strings.Trim(s, "-.")
	if len(s) > MaxWalletNameLength {
		s = s[:MaxWalletNameLength]
	}
	if s == "" {
		return DefaultFileSegment
	}
	return s
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > 1000 {
		s = s[:1000] + "...[truncated]"
	}

	return s
}

func containsControl(s string) bool {
	for _, r := range s {
		if r < 32 || r == 127 {
			return true
		}
	}
	return false
}
