package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// newGCM creates an AES-GCM AEAD for the given key.
// The key length selects AES-128, AES-192 or AES-256.
func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}

// GenerateKey generates a cryptographically secure random key of the given size
func GenerateKey(size int) ([]byte, error) {
	if size <= 0 {
		return nil, ErrInvalidKey
	}

	key := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// GenerateSalt generates a cryptographically secure random salt
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveMasterKey derives a MasterKeySize key from a passphrase using PBKDF2-SHA256
func DeriveMasterKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes", SaltSize)
	}

	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, MasterKeySize, sha256.New), nil
}

// seal encrypts plaintext with a nonce drawn from random.
// Returns: nonce + ciphertext + tag concatenated
func seal(aead cipher.AEAD, plaintext, aad []byte, random io.Reader) ([]byte, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(random, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends to the nonce so the result is a single allocation
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// open reverses seal.
// Input format: nonce + ciphertext + tag concatenated
func open(aead cipher.AEAD, sealed, aad []byte) ([]byte, error) {
	nonceSize := aead.NonceSize()
	if len(sealed) < nonceSize+aead.Overhead() {
		return nil, ErrInvalidRecord
	}

	nonce, ct := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, err
	}

	return plaintext, nil
}
