package encryption

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MasterKeyAlgorithm is recorded in master key files
const MasterKeyAlgorithm = "AES-256-GCM"

// MasterKeyFile is the on-disk form of a SimpleKeyProvider master key.
// It holds the key in the clear and must be protected like any other secret.
type MasterKeyFile struct {
	KeyID     string    `json:"key_id"`
	Algorithm string    `json:"algorithm"`
	CreatedAt time.Time `json:"created_at"`
	MasterKey string    `json:"master_key"` // hex encoded
}

// WriteMasterKeyFile writes masterKey to path with owner-only permissions.
// An existing file is never overwritten.
func WriteMasterKeyFile(path, keyID string, masterKey []byte) error {
	if keyID == "" {
		return fmt.Errorf("key id cannot be empty")
	}
	if len(masterKey) != MasterKeySize {
		return fmt.Errorf("%w: master key must be %d bytes, got %d", ErrInvalidKey, MasterKeySize, len(masterKey))
	}

	entry := MasterKeyFile{
		KeyID:     keyID,
		Algorithm: MasterKeyAlgorithm,
		CreatedAt: time.Now().UTC(),
		MasterKey: hex.EncodeToString(masterKey),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal master key file: %w", err)
	}
	defer wipe(data)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}

	// Write with restrictive permissions
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create master key file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write master key file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close master key file: %w", err)
	}

	return nil
}

// ReadMasterKeyFile reads and validates a master key file
func ReadMasterKeyFile(path string) (*MasterKeyFile, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read master key file %s: %w", path, err)
	}
	defer wipe(data)

	var entry MasterKeyFile
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal master key file %s: %w", path, err)
	}

	if entry.Algorithm != MasterKeyAlgorithm {
		return nil, nil, fmt.Errorf("unsupported master key algorithm %q", entry.Algorithm)
	}

	masterKey, err := hex.DecodeString(entry.MasterKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: master key is not valid hex", ErrInvalidKey)
	}
	entry.MasterKey = ""

	if len(masterKey) != MasterKeySize {
		wipe(masterKey)
		return nil, nil, fmt.Errorf("%w: master key must be %d bytes, got %d", ErrInvalidKey, MasterKeySize, len(masterKey))
	}

	return &entry, masterKey, nil
}

// LoadSimpleKeyProvider creates a SimpleKeyProvider from a master key file
func LoadSimpleKeyProvider(path string) (*SimpleKeyProvider, error) {
	entry, masterKey, err := ReadMasterKeyFile(path)
	if err != nil {
		return nil, err
	}
	defer wipe(masterKey)

	return NewSimpleKeyProvider(entry.KeyID, masterKey)
}
