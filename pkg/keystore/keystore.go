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

// Package keystore implements the encrypted keystore file format shared by
// multi-chain wallets: a phrase encrypted with AES-128-CTR under a PBKDF2
// derived key, authenticated with a Keccak-256 MAC.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

const (
	// Version is the keystore format version written by Encrypt.
	Version = 1

	// Meta identifies the producer of the keystore.
	Meta = "xchain-keystore"

	CipherAES128CTR = "aes-128-ctr"
	KDFPBKDF2       = "pbkdf2"
	PRFHMACSHA256   = "hmac-sha256"

	// DefaultIterations is the PBKDF2 iteration count for new keystores.
	DefaultIterations = 262144

	keyLength  = 32
	saltLength = 32
	ivLength   = aes.BlockSize
)

var (
	// ErrInvalidPassword is returned when the MAC does not verify.
	ErrInvalidPassword = errors.New("keystore: invalid password")

	// ErrMalformed is returned for keystores that cannot be decoded.
	ErrMalformed = errors.New("keystore: malformed keystore")

	// ErrUnsupported is returned for cipher or KDF parameters this package does not implement.
	ErrUnsupported = errors.New("keystore: unsupported parameters")

	// ErrEmptyPhrase is returned when asked to encrypt nothing.
	ErrEmptyPhrase = errors.New("keystore: phrase cannot be empty")
)

// Keystore is the JSON document stored for a wallet.
type Keystore struct {
	Crypto  Crypto `json:"crypto"`
	ID      string `json:"id"`
	Version int    `json:"version"`
	Meta    string `json:"meta"`
}

// Crypto holds the cipher text and everything needed to re-derive the key.
type Crypto struct {
	Cipher       string       `json:"cipher"`
	CipherText   string       `json:"ciphertext"`
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"`
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"`
}

// CipherParams holds the hex encoded initialisation vector.
type CipherParams struct {
	IV string `json:"iv"`
}

// KDFParams holds PBKDF2 parameters.
type KDFParams struct {
	PRF   string `json:"prf"`
	DKLen int    `json:"dklen"`
	Salt  string `json:"salt"`
	C     int    `json:"c"`
}

type options struct {
	iterations int
	random     io.Reader
}

// Option customises Encrypt.
type Option func(*options)

// WithIterations sets the PBKDF2 iteration count.
func WithIterations(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.iterations = n
		}
	}
}

// WithRandom sets the entropy source for salt and IV.
func WithRandom(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.random = r
		}
	}
}

// Encrypt encrypts phrase with password.
func Encrypt(phrase, password string, opts ...Option) (*Keystore, error) {
	if phrase == "" {
		return nil, ErrEmptyPhrase
	}

	o := options{iterations: DefaultIterations, random: rand.Reader}
	for _, opt := range opts {
		opt(&o)
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(o.random, salt); err != nil {
		return nil, fmt.Errorf("keystore: failed to generate salt: %w", err)
	}
	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(o.random, iv); err != nil {
		return nil, fmt.Errorf("keystore: failed to generate iv: %w", err)
	}

	derived := deriveKey(password, salt, o.iterations)
	cipherText, err := xorKeyStream(derived[:16], iv, []byte(phrase))
	if err != nil {
		return nil, err
	}

	return &Keystore{
		Crypto: Crypto{
			Cipher:       CipherAES128CTR,
			CipherText:   hex.EncodeToString(cipherText),
			CipherParams: CipherParams{IV: hex.EncodeToString(iv)},
			KDF:          KDFPBKDF2,
			KDFParams: KDFParams{
				PRF:   PRFHMACSHA256,
				DKLen: keyLength,
				Salt:  hex.EncodeToString(salt),
				C:     o.iterations,
			},
			MAC: hex.EncodeToString(computeMAC(derived, cipherText)),
		},
		ID:      uuid.New().String(),
		Version: Version,
		Meta:    Meta,
	}, nil
}

// Decrypt returns the phrase held by ks. A wrong password always yields
// ErrInvalidPassword, never a garbled phrase.
func Decrypt(ks *Keystore, password string) (string, error) {
	if err := ks.Validate(); err != nil {
		return "", err
	}

	// Validate has already proven these decode.
	cipherText, _ := hex.DecodeString(ks.Crypto.CipherText)
	iv, _ := hex.DecodeString(ks.Crypto.CipherParams.IV)
	salt, _ := hex.DecodeString(ks.Crypto.KDFParams.Salt)
	mac, _ := hex.DecodeString(ks.Crypto.MAC)

	derived := deriveKey(password, salt, ks.Crypto.KDFParams.C)
	if subtle.ConstantTimeCompare(computeMAC(derived, cipherText), mac) != 1 {
		return "", ErrInvalidPassword
	}

	plain, err := xorKeyStream(derived[:16], iv, cipherText)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Validate checks that the keystore is structurally decodable with the
// parameters this package supports.
func (ks *Keystore) Validate() error {
	if ks == nil {
		return fmt.Errorf("%w: nil keystore", ErrMalformed)
	}
	c := ks.Crypto
	if c.Cipher != CipherAES128CTR {
		return fmt.Errorf("%w: cipher %q", ErrUnsupported, c.Cipher)
	}
	if c.KDF != KDFPBKDF2 {
		return fmt.Errorf("%w: kdf %q", ErrUnsupported, c.KDF)
	}
	if c.KDFParams.PRF != PRFHMACSHA256 {
		return fmt.Errorf("%w: prf %q", ErrUnsupported, c.KDFParams.PRF)
	}
	if c.KDFParams.DKLen != keyLength {
		return fmt.Errorf("%w: dklen %d", ErrUnsupported, c.KDFParams.DKLen)
	}
	if c.KDFParams.C <= 0 {
		return fmt.Errorf("%w: iteration count %d", ErrMalformed, c.KDFParams.C)
	}

	fields := []struct {
		name string
		val  string
		size int
	}{
		{"ciphertext", c.CipherText, -1},
		{"iv", c.CipherParams.IV, ivLength},
		{"salt", c.KDFParams.Salt, -1},
		{"mac", c.MAC, sha3.NewLegacyKeccak256().Size()},
	}
	for _, f := range fields {
		b, err := hex.DecodeString(f.val)
		if err != nil || len(b) == 0 {
			return fmt.Errorf("%w: %s is not valid hex", ErrMalformed, f.name)
		}
		if f.size > 0 && len(b) != f.size {
			return fmt.Errorf("%w: %s has length %d, want %d", ErrMalformed, f.name, len(b), f.size)
		}
	}
	return nil
}

// Parse decodes and validates a keystore document.
func Parse(data []byte) (*Keystore, error) {
	var ks Keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := ks.Validate(); err != nil {
		return nil, err
	}
	return &ks, nil
}

// Marshal encodes ks as indented JSON.
func (ks *Keystore) Marshal() ([]byte, error) {
	return json.MarshalIndent(ks, "", "  ")
}

func deriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)
}

func computeMAC(derived, cipherText []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(derived[16:32])
	h.Write(cipherText)
	return h.Sum(nil)
}

func xorKeyStream(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}
