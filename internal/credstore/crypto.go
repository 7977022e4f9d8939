package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// sealingSalt binds derived keys to this store's use case.
	sealingSalt = "libresync-credentials"
	// sealingInfo is the HKDF info parameter.
	sealingInfo = "credential-sealing-v1"

	aesKeySize   = 32
	gcmNonceSize = 12
)

var (
	// ErrEmptySecret is returned when the master secret is empty.
	ErrEmptySecret = errors.New("store secret cannot be empty")

	// errValueTooShort means a stored value is shorter than nonce+tag.
	errValueTooShort = errors.New("sealed value too short")
)

// newAEAD derives a 256-bit key from the master secret with HKDF-SHA256
// and returns an AES-GCM instance over it.
func newAEAD(secret string) (cipher.AEAD, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	kdf := hkdf.New(sha256.New, []byte(secret), []byte(sealingSalt), []byte(sealingInfo))
	key := make([]byte, aesKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("failed to derive sealing key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// seal encrypts a plaintext value as nonce || ciphertext || tag.
func seal(aead cipher.AEAD, plaintext string) ([]byte, error) {
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// unseal reverses seal. Tampered or foreign-key data fails authentication.
func unseal(aead cipher.AEAD, data []byte) (string, error) {
	if len(data) < gcmNonceSize+aead.Overhead() {
		return "", errValueTooShort
	}
	plaintext, err := aead.Open(nil, data[:gcmNonceSize], data[gcmNonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to open sealed value: %w", err)
	}
	return string(plaintext), nil
}
