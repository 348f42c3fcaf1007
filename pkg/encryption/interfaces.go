package encryption

import "context"

// KeyProvider generates and unwraps data keys on behalf of a key-management
// system. Implementations must be safe for concurrent use when the
// EnvelopeCipher using them is shared between goroutines.
type KeyProvider interface {
	// GenerateDataKey returns a new DataKeySize key, its wrapped form and the
	// id of the master key that wrapped it. No partial DataKey is returned on
	// error.
	GenerateDataKey(ctx context.Context) (*DataKey, error)

	// DecryptDataKey reverses the wrap performed by GenerateDataKey. The error
	// must not reveal why unwrapping failed.
	DecryptDataKey(ctx context.Context, encryptedKey []byte) ([]byte, error)
}

// Verify that SimpleKeyProvider implements KeyProvider
var _ KeyProvider = (*SimpleKeyProvider)(nil)
