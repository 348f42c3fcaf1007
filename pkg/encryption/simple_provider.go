package encryption

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SimpleKeyProvider wraps data keys with a single in-process master key.
// It exists so the envelope protocol can run without an external KMS and
// is not a key-custody system.
type SimpleKeyProvider struct {
	keyID     string
	masterKey []byte
	aead      cipher.AEAD
	closed    bool
	mu        sync.RWMutex
}

// NewSimpleKeyProvider creates a provider that wraps data keys under masterKey.
// keyID names the master key and becomes the associated data of every record.
func NewSimpleKeyProvider(keyID string, masterKey []byte) (*SimpleKeyProvider, error) {
	if keyID == "" {
		return nil, fmt.Errorf("key id cannot be empty")
	}
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes, got %d", ErrInvalidKey, MasterKeySize, len(masterKey))
	}

	// Make a copy to avoid external mutations
	key := make([]byte, MasterKeySize)
	copy(key, masterKey)

	aead, err := newGCM(key)
	if err != nil {
		wipe(key)
		return nil, err
	}

	return &SimpleKeyProvider{
		keyID:     keyID,
		masterKey: key,
		aead:      aead,
	}, nil
}

// GenerateSimpleKeyProvider creates a provider with a random master key and
// a random UUID key id.
func GenerateSimpleKeyProvider() (*SimpleKeyProvider, error) {
	masterKey, err := GenerateKey(MasterKeySize)
	if err != nil {
		return nil, err
	}
	defer wipe(masterKey)

	return NewSimpleKeyProvider(uuid.NewString(), masterKey)
}

// NewSimpleKeyProviderFromPassphrase creates a provider whose master key is
// derived from a passphrase.
func NewSimpleKeyProviderFromPassphrase(keyID, passphrase string, salt []byte) (*SimpleKeyProvider, error) {
	masterKey, err := DeriveMasterKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer wipe(masterKey)

	return NewSimpleKeyProvider(keyID, masterKey)
}

// KeyID returns the id of the master key.
func (p *SimpleKeyProvider) KeyID() string {
	return p.keyID
}

// GenerateDataKey creates a random data key and wraps it under the master key.
// The wrapped form is nonce + sealed key + tag, authenticated with the key id.
func (p *SimpleKeyProvider) GenerateDataKey(ctx context.Context) (*DataKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrProviderClosed
	}

	key, err := GenerateKey(DataKeySize)
	if err != nil {
		return nil, err
	}

	wrapped, err := seal(p.aead, key, []byte(p.keyID), rand.Reader)
	if err != nil {
		wipe(key)
		return nil, fmt.Errorf("failed to wrap data key: %w", err)
	}

	return &DataKey{
		Key:          key,
		EncryptedKey: wrapped,
		KeyID:        p.keyID,
	}, nil
}

// DecryptDataKey unwraps a key produced by GenerateDataKey. Every failure,
// whether malformed input, a foreign master key or a bad tag, is reported
// as ErrKeyUnwrap.
func (p *SimpleKeyProvider) DecryptDataKey(ctx context.Context, encryptedKey []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrProviderClosed
	}

	if len(encryptedKey) != NonceSize+DataKeySize+TagSize {
		return nil, ErrKeyUnwrap
	}

	key, err := open(p.aead, encryptedKey, []byte(p.keyID))
	if err != nil {
		return nil, ErrKeyUnwrap
	}

	return key, nil
}

// Close wipes the master key. The provider cannot be used afterwards.
func (p *SimpleKeyProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	wipe(p.masterKey)
	p.aead = nil
	p.closed = true

	return nil
}
