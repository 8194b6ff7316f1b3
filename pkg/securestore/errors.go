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

package securestore

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jeremyhahn/go-walletstore/pkg/biometric"
)

var (
	// ErrNotFound is returned when no entry exists for a secure key id.
	ErrNotFound = errors.New("securestore: entry not found")

	// ErrMalformedPayload is returned for entries or payloads that cannot be decoded.
	ErrMalformedPayload = errors.New("securestore: malformed payload")

	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("securestore: secure storage unavailable")
)

const (
	unknownWriteFailure = "Unknown secure storage error"
	unknownRequired     = "Secure storage unavailable"
	requiredGuidance    = "Please ensure your device has a passcode/PIN set and try again."
	permissionGuidance  = " You may need to grant storage permissions in device settings."
)

var permissionPattern = regexp.MustCompile(`(?i)permission|denied|auth`)

// WriteError reports a recoverable secure storage write failure. Callers
// fall back to legacy storage unless policy forbids it.
type WriteError struct {
	Cause error
}

// NewWriteError wraps cause. A nil cause yields a generic message.
func NewWriteError(cause error) *WriteError {
	return &WriteError{Cause: cause}
}

func (e *WriteError) Error() string {
	return "secure storage failed: " + causeMessage(e.Cause, unknownWriteFailure)
}

func (e *WriteError) Unwrap() error { return e.Cause }

// Name identifies the error kind in telemetry.
func (e *WriteError) Name() string { return "SecureStorageWriteError" }

// FailureReason returns the underlying failure message of a write error.
func FailureReason(e *WriteError) string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		if msg := strings.TrimSpace(e.Cause.Error()); msg != "" {
			return msg
		}
	}
	return strings.TrimSpace(strings.TrimPrefix(e.Error(), "secure storage failed:"))
}

// RequiredError reports that policy mandates secure storage and the write
// failed. Wallet creation must stop.
type RequiredError struct {
	Cause     error
	Retryable bool
}

// NewRequiredError wraps cause as a retryable RequiredError.
func NewRequiredError(cause error) *RequiredError {
	return &RequiredError{Cause: cause, Retryable: true}
}

func (e *RequiredError) Error() string {
	return "wallet creation blocked: secure storage is required on mobile but failed. " +
		causeMessage(e.Cause, unknownRequired)
}

func (e *RequiredError) Unwrap() error { return e.Cause }

// Name identifies the error kind in telemetry.
func (e *RequiredError) Name() string { return "SecureStorageRequiredError" }

// Guidance returns user-facing advice for recovering from the failure.
func (e *RequiredError) Guidance() string {
	if e.Cause != nil && permissionPattern.MatchString(e.Cause.Error()) {
		return requiredGuidance + permissionGuidance
	}
	return requiredGuidance
}

// Detail returns the trimmed cause message, or "" when there is none.
func (e *RequiredError) Detail() string {
	if e.Cause == nil {
		return ""
	}
	return strings.TrimSpace(e.Cause.Error())
}

// VersionMismatchError reports an envelope whose version differs from
// EnvelopeVersion. Actual is nil when the version field is missing.
type VersionMismatchError struct {
	Expected int
	Actual   *int
}

func (e *VersionMismatchError) Error() string {
	actual := "unknown"
	if e.Actual != nil {
		actual = strconv.Itoa(*e.Actual)
	}
	return fmt.Sprintf("secure storage payload version mismatch: expected %d, received %s", e.Expected, actual)
}

// Name identifies the error kind in telemetry.
func (e *VersionMismatchError) Name() string { return "SecureStorageVersionMismatchError" }

// DowngradeError reports a biometric-gated entry read under a downgraded
// guarantee. The payload was retrieved but must not be trusted silently.
type DowngradeError struct {
	SecureKeyID string
	Reason      biometric.Reason
	Payload     Payload
	// StatusError carries the plugin status failure, if any.
	StatusError string
}

func (e *DowngradeError) Error() string {
	return fmt.Sprintf("biometric protection downgraded for secure entry: %s", e.Reason)
}

// Name identifies the error kind in telemetry.
func (e *DowngradeError) Name() string { return "BiometricDowngradeError" }

// AsDowngrade reports whether err carries a DowngradeError.
func AsDowngrade(err error) (*DowngradeError, bool) {
	var d *DowngradeError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

func causeMessage(cause error, fallback string) string {
	if cause == nil {
		return fallback
	}
	if msg := cause.Error(); msg != "" {
		return msg
	}
	return fallback
}
