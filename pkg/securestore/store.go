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

// Package securestore holds encrypted keystores outside the wallet list,
// keyed by opaque secure key ids. Entries are wrapped in a versioned
// envelope; a version mismatch is always a hard error.
package securestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-walletstore/pkg/biometric"
	"github.com/jeremyhahn/go-walletstore/pkg/keystore"
	"github.com/jeremyhahn/go-walletstore/pkg/logging"
	"github.com/jeremyhahn/go-walletstore/pkg/telemetry"
	"github.com/jeremyhahn/go-walletstore/pkg/validation"
)

const (
	// EnvelopeVersion is the only envelope version this package reads.
	EnvelopeVersion = 1

	// PayloadTypeKeystore tags payloads that carry an encrypted keystore.
	PayloadTypeKeystore = "keystore"

	// IDPrefix prefixes generated secure key ids.
	IDPrefix = "asgardex-keystore-"
)

// Payload is the tagged value held by an entry.
type Payload struct {
	Type     string             `json:"type"`
	Keystore *keystore.Keystore `json:"keystore,omitempty"`
}

// KeystorePayload wraps ks in a keystore payload.
func KeystorePayload(ks *keystore.Keystore) Payload {
	return Payload{Type: PayloadTypeKeystore, Keystore: ks}
}

// WriteParams describes a write. An empty SecureKeyID allocates a new id.
type WriteParams struct {
	SecureKeyID       string
	Payload           Payload
	BiometricRequired bool
}

// WriteResult is returned by a successful write.
type WriteResult struct {
	SecureKeyID string `json:"secureKeyId"`
	UpdatedAt   string `json:"updatedAt"`
}

// ExistsResult reports entry presence. Supported is false when the store
// cannot answer.
type ExistsResult struct {
	Exists    bool `json:"exists"`
	Supported bool `json:"supported"`
}

// Store is a secure storage backend.
type Store interface {
	Write(ctx context.Context, params WriteParams) (WriteResult, error)
	// Read returns the payload for id. It fails with ErrNotFound,
	// ErrMalformedPayload, *VersionMismatchError or *DowngradeError.
	Read(ctx context.Context, id string) (Payload, error)
	// Remove deletes the entry. Removing a missing entry is not an error.
	Remove(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (ExistsResult, error)
	// List returns the ids of every entry carrying IDPrefix.
	List(ctx context.Context) ([]string, error)
}

// BiometricCheck reports whether biometric-gated reads are currently
// downgraded. biometric.Bridge.CheckDowngrade satisfies it.
type BiometricCheck func(ctx context.Context) (biometric.Reason, bool)

// Option configures a store.
type Option func(*core)

// WithBiometricCheck consults check when reading biometric-gated entries.
func WithBiometricCheck(check BiometricCheck) Option {
	return func(c *core) {
		c.biometricCheck = check
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *core) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides secure key id allocation.
func WithIDGenerator(gen func() string) Option {
	return func(c *core) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *core) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTelemetry records version_mismatch events.
func WithTelemetry(recorder *telemetry.Recorder) Option {
	return func(c *core) {
		c.telemetry = recorder
	}
}

// NewID allocates a secure key id.
func NewID() string {
	return IDPrefix + uuid.New().String()
}

type envelope struct {
	Version           int             `json:"version"`
	Payload           json.RawMessage `json:"payload"`
	CreatedAt         string          `json:"createdAt"`
	UpdatedAt         string          `json:"updatedAt"`
	BiometricRequired bool            `json:"biometricRequired,omitempty"`
}

type rawEnvelope struct {
	Version           *int            `json:"version"`
	Payload           json.RawMessage `json:"payload"`
	CreatedAt         string          `json:"createdAt"`
	UpdatedAt         string          `json:"updatedAt"`
	BiometricRequired bool            `json:"biometricRequired"`
}

// core holds the envelope handling shared by every store.
type core struct {
	biometricCheck BiometricCheck
	now            func() time.Time
	newID          func() string
	logger         *logging.Logger
	telemetry      *telemetry.Recorder
}

func newCore(component string, opts []Option) core {
	c := core{
		now:    time.Now,
		newID:  NewID,
		logger: logging.NewDiscard(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	c.logger = c.logger.Component(component)
	return c
}

func (c *core) resolveID(params WriteParams) (string, error) {
	if params.SecureKeyID == "" {
		return c.newID(), nil
	}
	if err := validation.ValidateSecureKeyID(params.SecureKeyID); err != nil {
		return "", err
	}
	return params.SecureKeyID, nil
}

// seal encodes params into an envelope. previous, when non-nil, is the
// entry being overwritten; its creation time is preserved.
func (c *core) seal(params WriteParams, previous []byte) ([]byte, string, error) {
	if params.Payload.Type != PayloadTypeKeystore || params.Payload.Keystore == nil {
		return nil, "", fmt.Errorf("%w: payload must contain an encrypted keystore", ErrMalformedPayload)
	}
	payload, err := json.Marshal(params.Payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	now := c.now().UTC().Format(time.RFC3339Nano)
	createdAt := now
	if previous != nil {
		var prev rawEnvelope
		if json.Unmarshal(previous, &prev) == nil && prev.CreatedAt != "" {
			createdAt = prev.CreatedAt
		}
	}

	data, err := json.Marshal(envelope{
		Version:           EnvelopeVersion,
		Payload:           payload,
		CreatedAt:         createdAt,
		UpdatedAt:         now,
		BiometricRequired: params.BiometricRequired,
	})
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return data, now, nil
}

// open decodes an envelope, enforcing the version and the biometric check.
func (c *core) open(ctx context.Context, id string, data []byte) (Payload, error) {
	var env rawEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Payload{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, id, err)
	}

	if env.Version == nil || *env.Version != EnvelopeVersion {
		mismatch := &VersionMismatchError{Expected: EnvelopeVersion, Actual: env.Version}
		metadata := map[string]any{"expected": EnvelopeVersion, "message": mismatch.Error()}
		if env.Version != nil {
			metadata["actual"] = *env.Version
		}
		c.telemetry.Record(ctx, telemetry.Params{
			Action:      telemetry.ActionVersionMismatch,
			SecureKeyID: id,
			Metadata:    metadata,
		})
		c.logger.Warn("secure entry version mismatch", "error", mismatch.Error())
		return Payload{}, mismatch
	}

	var payload Payload
	if len(env.Payload) == 0 {
		return Payload{}, fmt.Errorf("%w: %s: missing payload", ErrMalformedPayload, id)
	}
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return Payload{}, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, id, err)
	}

	if env.BiometricRequired && c.biometricCheck != nil {
		if reason, downgraded := c.biometricCheck(ctx); downgraded {
			d := &DowngradeError{SecureKeyID: id, Reason: reason, Payload: payload}
			if reason == biometric.ReasonStatusError {
				d.StatusError = "biometric status check failed"
			}
			return Payload{}, d
		}
	}
	return payload, nil
}

func filterIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if strings.HasPrefix(id, IDPrefix) {
			out = append(out, id)
		}
	}
	return out
}

// IsNotFound reports whether err means the entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
