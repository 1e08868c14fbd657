// Vigil - Embedded Security Auditing and Protection Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestNewEncryptorEmptySecret(t *testing.T) {
	if _, err := NewEncryptor(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
}

func TestNewEncryptorShortSecret(t *testing.T) {
	if _, err := NewEncryptor("too-short"); !errors.Is(err, ErrShortSecret) {
		t.Errorf("expected ErrShortSecret, got %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	e, err := NewEncryptor("test-secret-key-0123")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	tests := []string{
		"hello world",
		"",
		"日本語テキスト",
		strings.Repeat("x", 10000),
		"special:chars:with:colons",
	}

	for _, plaintext := range tests {
		envelope, err := e.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plaintext, err)
		}

		decrypted, err := e.Decrypt(envelope)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}

		if decrypted != plaintext {
			t.Errorf("round trip mismatch: got %q, want %q", decrypted, plaintext)
		}
	}
}

func TestEncryptProducesDistinctEnvelopes(t *testing.T) {
	e, err := NewEncryptor("test-secret-key-0123")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	first, err := e.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	second, err := e.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if first == second {
		t.Error("encrypting the same plaintext twice produced identical envelopes")
	}
}

func TestEnvelopeFormat(t *testing.T) {
	e, err := NewEncryptor("test-secret-key-0123")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	envelope, err := e.Encrypt("payload")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		t.Fatalf("expected 3 envelope segments, got %d", len(parts))
	}
	if len(parts[0]) != gcmNonceSize*2 {
		t.Errorf("nonce segment length = %d, want %d hex chars", len(parts[0]), gcmNonceSize*2)
	}
	if len(parts[1]) != 32 {
		t.Errorf("tag segment length = %d, want 32 hex chars", len(parts[1]))
	}
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	e, err := NewEncryptor("test-secret-key-0123")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	tests := []struct {
		name     string
		envelope string
	}{
		{"empty", ""},
		{"no separators", "deadbeef"},
		{"two parts", "deadbeef:cafe"},
		{"four parts", "aa:bb:cc:dd"},
		{"non-hex nonce", "zz:0011:2233"},
		{"short nonce", "deadbeef:00112233445566778899aabbccddeeff:2233"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Decrypt(tt.envelope); !errors.Is(err, ErrInvalidEnvelope) {
				t.Errorf("expected ErrInvalidEnvelope, got %v", err)
			}
		})
	}
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	e, err := NewEncryptor("test-secret-key-0123")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	envelope, err := e.Encrypt("sensitive payload")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Flip a hex digit in the ciphertext segment
	parts := strings.Split(envelope, ":")
	ct := []byte(parts[2])
	if ct[0] == 'a' {
		ct[0] = 'b'
	} else {
		ct[0] = 'a'
	}
	tampered := parts[0] + ":" + parts[1] + ":" + string(ct)

	if _, err := e.Decrypt(tampered); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed for tampered ciphertext, got %v", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	e1, _ := NewEncryptor("secret-one-0123456")
	e2, _ := NewEncryptor("secret-two-0123456")

	envelope, err := e1.Encrypt("payload")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := e2.Decrypt(envelope); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed with wrong key, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	e, err := NewEncryptor("test-secret-key-0123")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	if err := e.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestHashIdentifier(t *testing.T) {
	h1 := HashIdentifier("203.0.113.7")
	h2 := HashIdentifier("203.0.113.7")
	h3 := HashIdentifier("203.0.113.8")

	if h1 != h2 {
		t.Error("identical identifiers produced different hashes")
	}
	if h1 == h3 {
		t.Error("distinct identifiers produced identical hashes")
	}
	if len(h1) != 16 {
		t.Errorf("hash length = %d, want 16", len(h1))
	}
}
