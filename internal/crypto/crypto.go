// Package crypto seals personal contact details stored at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrMissingKey         = errors.New("encryption key is required")
	ErrInvalidKey         = errors.New("encryption key must be 32 bytes for AES-256")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)

// sealedPrefix marks values produced by Seal. Values without it are
// returned unchanged by Open so rows written before a key was configured
// stay readable.
const sealedPrefix = "enc1:"

// FieldCipher seals individual column values. The binding is stored
// alongside the value (typically the row id) and must match on Open.
type FieldCipher interface {
	Seal(plaintext string, binding []byte) (string, error)
	Open(stored string, binding []byte) (string, error)
}

type aesGCMCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher creates an AES-256-GCM cipher from a 32-byte key.
func NewFieldCipher(key string) (FieldCipher, error) {
	if key == "" {
		return nil, ErrMissingKey
	}

	keyBytes := []byte(key)
	if len(keyBytes) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &aesGCMCipher{aead: aead}, nil
}

func (c *aesGCMCipher) Seal(plaintext string, binding []byte) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), binding)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (c *aesGCMCipher) Open(stored string, binding []byte) (string, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return stored, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	plaintext, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], binding)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// Plaintext stores values as-is. It is used when no key is configured.
type Plaintext struct{}

func (Plaintext) Seal(plaintext string, _ []byte) (string, error) {
	return plaintext, nil
}

func (Plaintext) Open(stored string, _ []byte) (string, error) {
	if strings.HasPrefix(stored, sealedPrefix) {
		return "", ErrMissingKey
	}
	return stored, nil
}
