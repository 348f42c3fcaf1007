package encryption

import "errors"

const (
	DataKeySize   = 16 // AES-128 data keys
	MasterKeySize = 32 // AES-256 master key for SimpleKeyProvider
	NonceSize     = 12 // GCM standard nonce size
	TagSize       = 16 // GCM authentication tag size
	SaltSize      = 32 // Salt for PBKDF2

	PBKDF2Iterations = 600000 // OWASP recommended minimum
)

var (
	// ErrEncryption is the only error Encrypt and Seal return.
	ErrEncryption = errors.New("envelope: encryption failed")
	// ErrDecryption is the only error Decrypt and Open return.
	ErrDecryption = errors.New("envelope: decryption failed")
)

var (
	ErrInvalidKey     = errors.New("invalid encryption key")
	ErrKeyUnwrap      = errors.New("unable to unwrap data key")
	ErrProviderClosed = errors.New("key provider is closed")
	ErrInvalidRecord  = errors.New("invalid encrypted record")
	ErrNilKeyProvider = errors.New("key provider cannot be nil")
)

// DataKey is a freshly generated data key in both raw and wrapped form.
// Key must never leave the process; only EncryptedKey and KeyID may be
// stored alongside ciphertext.
type DataKey struct {
	Key          []byte
	EncryptedKey []byte
	KeyID        string
}

// Wipe zeroes the raw key material.
func (dk *DataKey) Wipe() {
	if dk == nil {
		return
	}
	wipe(dk.Key)
}

// EncryptedRecord is the output of Encrypt and the input to Decrypt.
type EncryptedRecord struct {
	Ciphertext   []byte // GCM output including the tag
	EncryptedKey []byte // wrapped data key
	Nonce        [NonceSize]byte
	// AAD is the byte encoding of the provider key id that wrapped
	// EncryptedKey. It is authenticated, not encrypted.
	AAD []byte
}

// KeyID returns the key id the record is bound to.
func (r *EncryptedRecord) KeyID() string {
	return string(r.AAD)
}

// wipe zeroes b in place.
func wipe(b []byte) {
	clear(b)
}
