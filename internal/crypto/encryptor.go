// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package crypto implements symmetric authenticated encryption for opaque
// payloads.
//
// Encryption Algorithm:
//   - AES-256-GCM (authenticated encryption)
//   - 12-byte random nonce per encryption
//   - Key derived from the configured secret using HKDF-SHA256
//
// Envelope Format:
//
//	hex(nonce):hex(tag):hex(ciphertext)
//
// The envelope is self-describing: decryption needs no external state beyond
// the key. The same plaintext encrypted twice yields different envelopes
// because the nonce is random per call.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// keyDerivationSalt binds derived keys to this application's payload
	// encryption use case.
	keyDerivationSalt = "vigil-payload-encryption"

	// keyDerivationInfo is the HKDF info parameter for key derivation.
	keyDerivationInfo = "payload-encryption-v1"

	// minSecretLength is the minimum accepted secret length in bytes.
	minSecretLength = 16

	// aesKeySize is the size of the AES key in bytes (256 bits).
	aesKeySize = 32

	// gcmNonceSize is the size of the GCM nonce in bytes.
	gcmNonceSize = 12

	// envelopeParts is the number of colon-delimited segments in an envelope.
	envelopeParts = 3
)

var (
	// ErrEmptySecret is returned when an empty secret is provided.
	// There is no silent default key; the engine refuses to start.
	ErrEmptySecret = errors.New("encryption secret cannot be empty")

	// ErrShortSecret is returned when the secret is shorter than the
	// required minimum.
	ErrShortSecret = errors.New("encryption secret must be at least 16 bytes")

	// ErrInvalidEnvelope is returned when the envelope format is malformed.
	ErrInvalidEnvelope = errors.New("invalid envelope format")

	// ErrDecryptionFailed is returned when the authentication tag does not
	// verify or the ciphertext is otherwise corrupt.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// Encryptor provides AES-256-GCM encryption of opaque payloads.
// The key is derived once at construction from the configured secret.
type Encryptor struct {
	cipher cipher.AEAD
}

// NewEncryptor creates an encryptor from the configured secret.
// Returns ErrEmptySecret if the secret is absent, ErrShortSecret if it
// is under 16 bytes.
func NewEncryptor(secret string) (*Encryptor, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if len(secret) < minSecretLength {
		return nil, ErrShortSecret
	}

	key, err := deriveKey(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Encryptor{cipher: gcm}, nil
}

// Encrypt encrypts a plaintext and returns the self-describing envelope
// hex(nonce):hex(tag):hex(ciphertext). A fresh random nonce is generated
// for every call.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.cipher.Seal(nil, nonce, []byte(plaintext), nil)

	// Seal appends the tag to the ciphertext; split them so the envelope
	// carries nonce, tag, and ciphertext as separate segments.
	tagOffset := len(sealed) - e.cipher.Overhead()
	ciphertext := sealed[:tagOffset]
	tag := sealed[tagOffset:]

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens an envelope produced by Encrypt and returns the plaintext.
// A malformed envelope yields ErrInvalidEnvelope; a tampered one yields
// ErrDecryptionFailed. The caller never receives a silently wrong plaintext.
func (e *Encryptor) Decrypt(envelope string) (string, error) {
	parts := strings.Split(envelope, ":")
	if len(parts) != envelopeParts {
		return "", ErrInvalidEnvelope
	}

	nonce, err := hex.DecodeString(parts[0])
	if err != nil || len(nonce) != gcmNonceSize {
		return "", ErrInvalidEnvelope
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != e.cipher.Overhead() {
		return "", ErrInvalidEnvelope
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", ErrInvalidEnvelope
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := e.cipher.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// Validate performs a round-trip encrypt/decrypt self-test.
func (e *Encryptor) Validate() error {
	const testData = "encryption-validation-test"

	encrypted, err := e.Encrypt(testData)
	if err != nil {
		return fmt.Errorf("encryption test failed: %w", err)
	}

	decrypted, err := e.Decrypt(encrypted)
	if err != nil {
		return fmt.Errorf("decryption test failed: %w", err)
	}

	if decrypted != testData {
		return errors.New("round-trip validation failed: data mismatch")
	}

	return nil
}

// HashIdentifier returns a short one-way hash of an identifier, suitable for
// recording in audit events without exposing the raw value.
func HashIdentifier(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])[:16]
}

// deriveKey derives a 256-bit AES key from the secret using HKDF-SHA256.
func deriveKey(secret string) ([]byte, error) {
	hkdfReader := hkdf.New(
		sha256.New,
		[]byte(secret),
		[]byte(keyDerivationSalt),
		[]byte(keyDerivationInfo),
	)

	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("failed to read HKDF output: %w", err)
	}

	return key, nil
}
