// Package encryption implements envelope encryption.
//
// Every call to EnvelopeCipher.Encrypt asks a KeyProvider for a fresh AES-128
// data key, seals the message with AES-GCM under that key and discards the
// raw key. Only the wrapped form of the key travels with the ciphertext in an
// EncryptedRecord. The key id reported by the provider is bound into the GCM
// tag as associated data, so a record cannot be opened while claiming a
// different key id.
//
// The KeyProvider is the only seam to a key-management system. SimpleKeyProvider
// is an in-process implementation holding one static master key and is meant
// for local use and tests only.
//
// Failures are opaque: Encrypt returns ErrEncryption and Decrypt
// returns ErrDecryption regardless of which step failed.
package encryption
