// Package crypto protects credential secrets at rest and hashes user
// passwords.
//
// Secrets are sealed with AES-256-GCM. The 32-byte key is the SHA-256 digest
// of the configured encryption key string and the stored form is
// base64(nonce || ciphertext), so values written by earlier gitsafe releases
// stay readable.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	nonceSize = 12
	tagSize   = 16
)

// ErrCiphertextTooShort is returned when the decoded input cannot hold a nonce and tag.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// Encrypt seals plaintext with key and returns the base64 encoding.
func Encrypt(plaintext, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce, err := GenerateRandomBytes(nonceSize)
	if err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)

	// Combine: nonce + ciphertext
	result := make([]byte, 0, nonceSize+len(sealed))
	result = append(result, nonce...)
	result = append(result, sealed...)

	return base64.StdEncoding.EncodeToString(result), nil
}

// Decrypt opens a value produced by Encrypt.
func Decrypt(ciphertext, key string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("base64 decode failed: %w", err)
	}

	if len(data) < nonceSize+tagSize {
		return "", ErrCiphertextTooShort
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}

	return string(plaintext), nil
}

// GenerateRandomBytes generates cryptographically secure random bytes.
func GenerateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return b, nil
}

// GenerateKey returns a random key string suitable for the encryption_key setting.
func GenerateKey() (string, error) {
	b, err := GenerateRandomBytes(32)
	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

func newGCM(key string) (cipher.AEAD, error) {
	sum := sha256.Sum256([]byte(key))

	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}
