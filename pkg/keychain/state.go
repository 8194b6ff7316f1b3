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

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// StateKind enumerates the keystore states.
type StateKind string

const (
	StateNone     StateKind = "none"
	StateLocked   StateKind = "locked"
	StateUnlocked StateKind = "unlocked"
)

// KeystoreState is the state of the selected wallet. The phrase of an
// unlocked state lives in an encrypted memguard enclave and is only
// decrypted inside WithPhrase or Phrase.
type KeystoreState struct {
	kind   StateKind
	id     int
	name   string
	phrase *memguard.Enclave
}

// NoneState is the state before any keystore has been imported.
func NoneState() KeystoreState {
	return KeystoreState{kind: StateNone}
}

// LockedState is a selected wallet whose phrase is not in memory.
func LockedState(id int, name string) KeystoreState {
	return KeystoreState{kind: StateLocked, id: id, name: name}
}

// UnlockedState seals phrase into an enclave.
func UnlockedState(id int, name, phrase string) KeystoreState {
	s := KeystoreState{kind: StateUnlocked, id: id, name: name}
	if phrase != "" {
		s.phrase = memguard.NewEnclave([]byte(phrase))
	}
	return s
}

func (s KeystoreState) Kind() StateKind {
	if s.kind == "" {
		return StateNone
	}
	return s.kind
}

// ID returns the wallet id; false for the none state.
func (s KeystoreState) ID() (int, bool) {
	if s.Kind() == StateNone {
		return 0, false
	}
	return s.id, true
}

func (s KeystoreState) Name() string { return s.name }

func (s KeystoreState) IsNone() bool { return s.Kind() == StateNone }
func (s KeystoreState) IsLocked() bool { return s.kind == StateLocked }
func (s KeystoreState) IsUnlocked() bool { return s.kind == StateUnlocked }

// Locked drops the phrase. The none state stays none.
func (s KeystoreState) Locked() KeystoreState {
	if s.IsNone() {
		return s
	}
	return LockedState(s.id, s.name)
}

// WithName returns a copy of s carrying name. The phrase enclave is shared.
func (s KeystoreState) WithName(name string) KeystoreState {
	s.name = name
	return s
}

// WithPhrase opens the phrase enclave for the duration of fn. The buffer is
// destroyed when fn returns and must not be retained.
func (s KeystoreState) WithPhrase(fn func(phrase []byte) error) error {
	if !s.IsUnlocked() || s.phrase == nil {
		return ErrNotUnlocked
	}
	buf, err := s.phrase.Open()
	if err != nil {
		return fmt.Errorf("keychain: open phrase: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Phrase returns a copy of the phrase.
func (s KeystoreState) Phrase() (string, error) {
	var phrase string
	err := s.WithPhrase(func(b []byte) error {
		phrase = string(b)
		return nil
	})
	return phrase, err
}

// String never includes the phrase.
func (s KeystoreState) String() string {
	if s.IsNone() {
		return string(StateNone)
	}
	return fmt.Sprintf("%s{id:%d, name:%q}", s.kind, s.id, s.name)
}
