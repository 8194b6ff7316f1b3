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

// Package telemetry builds secure storage telemetry events. Secure key ids
// are hashed and sensitive metadata is redacted before an event reaches any
// sink.
package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Action identifies what happened to a secure storage entry.
type Action string

const (
	ActionWriteSuccess               Action = "write_success"
	ActionWriteFailure               Action = "write_failure"
	ActionWritePersistFailure        Action = "write_persist_failure"
	ActionUnlockSuccess              Action = "unlock_success"
	ActionUnlockFailure              Action = "unlock_failure"
	ActionRemove                     Action = "remove"
	ActionRemoveFailure              Action = "remove_failure"
	ActionOnboardingBlocked          Action = "onboarding_blocked"
	ActionVersionMismatch            Action = "version_mismatch"
	ActionBiometricSuccess           Action = "biometric_success"
	ActionBiometricFailure           Action = "biometric_failure"
	ActionBiometricDowngraded        Action = "biometric_downgraded"
	ActionBiometricDowngradeConsumed Action = "biometric_downgrade_consumed"
	ActionBiometricToggle            Action = "biometric_toggle"
	ActionExportInitiated            Action = "export_initiated"
	ActionExportCompleted            Action = "export_completed"
	ActionExportCanceled             Action = "export_canceled"
)

// DeviceType is the platform family reported with every event.
type DeviceType string

const (
	DeviceIOS     DeviceType = "ios"
	DeviceAndroid DeviceType = "android"
	DeviceDesktop DeviceType = "desktop"
)

// ParseDeviceType maps a platform name to a DeviceType. Unknown values
// report as desktop.
func ParseDeviceType(s string) DeviceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ios", "iphone", "ipad", "ipod":
		return DeviceIOS
	case "android":
		return DeviceAndroid
	default:
		return DeviceDesktop
	}
}

// IsMobile reports whether d is a mobile platform.
func (d DeviceType) IsMobile() bool {
	return d == DeviceIOS || d == DeviceAndroid
}

// DefaultAppVersion is reported when no version is configured.
const DefaultAppVersion = "dev"

// Event is the payload delivered to sinks.
type Event struct {
	Action      Action            `json:"action"`
	OccurredAt  string            `json:"occurredAt"`
	WalletID    *int              `json:"walletId,omitempty"`
	SecureKeyID string            `json:"secureKeyId,omitempty"`
	DeviceType  DeviceType        `json:"deviceType"`
	AppVersion  string            `json:"appVersion"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Params describes an event to record. WalletID 0 means no wallet.
type Params struct {
	Action      Action
	WalletID    int
	SecureKeyID string
	Metadata    map[string]any
}

// Sink receives recorded events. Sinks are fire-and-forget.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, event Event)

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, event Event) {
	f(ctx, event)
}

// Recorder builds events and hands them to a sink. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	appVersion string
	deviceType DeviceType
	sink       Sink
	now        func() time.Time
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder returns a Recorder for the given application version and
// device type. A nil sink discards events.
func NewRecorder(appVersion string, deviceType DeviceType, sink Sink, opts ...Option) *Recorder {
	if appVersion == "" {
		appVersion = DefaultAppVersion
	}
	if deviceType == "" {
		deviceType = DeviceDesktop
	}
	r := &Recorder{
		appVersion: appVersion,
		deviceType: deviceType,
		sink:       sink,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DeviceType returns the device type the recorder reports.
func (r *Recorder) DeviceType() DeviceType {
	if r == nil {
		return DeviceDesktop
	}
	return r.deviceType
}

// Record builds the event for p, emits it and returns it.
func (r *Recorder) Record(ctx context.Context, p Params) Event {
	if r == nil {
		return Event{}
	}

	event := Event{
		Action:      p.Action,
		OccurredAt:  r.now().UTC().Format(time.RFC3339Nano),
		SecureKeyID: HashSecureKeyID(r.appVersion, r.deviceType, p.SecureKeyID),
		DeviceType:  r.deviceType,
		AppVersion:  r.appVersion,
		Metadata:    SanitizeMetadata(p.Metadata),
	}
	if p.WalletID != 0 {
		id := p.WalletID
		event.WalletID = &id
	}

	if r.sink != nil {
		r.sink.Emit(ctx, event)
	}
	return event
}

// HashSecureKeyID returns the hex sha256 of "<appVersion>::<deviceType>::<id>",
// or "" for an empty id.
func HashSecureKeyID(appVersion string, deviceType DeviceType, id string) string {
	if id == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(appVersion + "::" + string(deviceType) + "::" + id))
	return hex.EncodeToString(sum[:])
}
