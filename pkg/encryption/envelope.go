package encryption

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/dd0wney/cluso-envelope/pkg/logging"
	"github.com/dd0wney/cluso-envelope/pkg/metrics"
)

const (
	opEncrypt = "encrypt"
	opDecrypt = "decrypt"

	callGenerate = "generate_data_key"
	callDecrypt  = "decrypt_data_key"
)

// EnvelopeCipher encrypts messages under per-message data keys obtained
// from a KeyProvider. It is safe for concurrent use if its KeyProvider is.
type EnvelopeCipher struct {
	provider KeyProvider
	logger   logging.Logger
	metrics  *metrics.Registry

	entropy io.Reader
	rand    io.Reader
	randMu  sync.Mutex // serialises draws from rand
}

// Option configures an EnvelopeCipher
type Option func(*EnvelopeCipher)

// WithLogger sets the logger. Defaults to logging.DefaultLogger().
func WithLogger(logger logging.Logger) Option {
	return func(c *EnvelopeCipher) {
		c.logger = logger
	}
}

// WithMetrics records operation metrics in the given registry
func WithMetrics(registry *metrics.Registry) Option {
	return func(c *EnvelopeCipher) {
		c.metrics = registry
	}
}

// WithRandom replaces the nonce generator. r is read under the cipher's lock.
func WithRandom(r io.Reader) Option {
	return func(c *EnvelopeCipher) {
		c.rand = r
	}
}

// WithEntropy sets the source used to seed the default nonce generator.
// Defaults to crypto/rand.
func WithEntropy(r io.Reader) Option {
	return func(c *EnvelopeCipher) {
		c.entropy = r
	}
}

// NewEnvelopeCipher creates a cipher bound to provider. Unless WithRandom is
// given, the nonce generator is a ChaCha20 keystream seeded from OS entropy.
func NewEnvelopeCipher(provider KeyProvider, opts ...Option) (*EnvelopeCipher, error) {
	if provider == nil {
		return nil, ErrNilKeyProvider
	}

	c := &EnvelopeCipher{provider: provider}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logging.DefaultLogger()
	}
	c.logger = c.logger.With(logging.Component("envelope"))

	if c.rand == nil {
		ks, err := newKeystream(c.entropy)
		if err != nil {
			return nil, err
		}
		c.rand = ks
	}

	return c, nil
}

// Encrypt seals message under a fresh data key. Any failure is reported as
// ErrEncryption.
func (c *EnvelopeCipher) Encrypt(ctx context.Context, message []byte) (*EncryptedRecord, error) {
	start := time.Now()

	dataKey, err := c.provider.GenerateDataKey(ctx)
	c.recordProviderCall(callGenerate, err)
	if err != nil {
		dataKey.Wipe()
		return nil, c.encryptFailed(start, "generate_data_key", err)
	}
	if dataKey == nil {
		return nil, c.encryptFailed(start, "generate_data_key", ErrInvalidKey)
	}
	defer c.wipeKey(dataKey.Key)

	if len(dataKey.Key) != DataKeySize {
		return nil, c.encryptFailed(start, "key_size", ErrInvalidKey)
	}

	aad := []byte(dataKey.KeyID)

	var nonce [NonceSize]byte
	if err := c.readNonce(nonce[:]); err != nil {
		return nil, c.encryptFailed(start, "nonce", err)
	}

	gcm, err := newGCM(dataKey.Key)
	if err != nil {
		return nil, c.encryptFailed(start, "cipher", err)
	}

	record := &EncryptedRecord{
		Ciphertext:   gcm.Seal(nil, nonce[:], message, aad),
		EncryptedKey: bytes.Clone(dataKey.EncryptedKey),
		Nonce:        nonce,
		AAD:          aad,
	}

	elapsed := time.Since(start)
	c.recordOperation(opEncrypt, metrics.StatusSuccess, elapsed, len(message))
	c.logger.Debug("message encrypted",
		logging.Operation(opEncrypt),
		logging.KeyID(dataKey.KeyID),
		logging.Size(len(message)),
		logging.Latency(elapsed),
	)

	return record, nil
}

// Decrypt unwraps the record's data key and opens the ciphertext. Any
// failure, including authentication failure, is reported as ErrDecryption
// and no plaintext is returned.
func (c *EnvelopeCipher) Decrypt(ctx context.Context, record *EncryptedRecord) ([]byte, error) {
	start := time.Now()

	if record == nil {
		return nil, c.decryptFailed(start, "record", ErrInvalidRecord)
	}

	key, err := c.provider.DecryptDataKey(ctx, record.EncryptedKey)
	c.recordProviderCall(callDecrypt, err)
	if err != nil {
		wipe(key)
		return nil, c.decryptFailed(start, "unwrap", err)
	}
	defer c.wipeKey(key)

	if len(key) != DataKeySize {
		return nil, c.decryptFailed(start, "key_size", ErrInvalidKey)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, c.decryptFailed(start, "cipher", err)
	}

	plaintext, err := gcm.Open(nil, record.Nonce[:], record.Ciphertext, record.AAD)
	if err != nil {
		return nil, c.decryptFailed(start, "open", err)
	}
	if plaintext == nil {
		plaintext = []byte{}
	}

	elapsed := time.Since(start)
	c.recordOperation(opDecrypt, metrics.StatusSuccess, elapsed, len(plaintext))
	c.logger.Debug("record decrypted",
		logging.Operation(opDecrypt),
		logging.KeyID(record.KeyID()),
		logging.Size(len(plaintext)),
		logging.Latency(elapsed),
	)

	return plaintext, nil
}

// Seal encrypts message and returns the serialised record
func (c *EnvelopeCipher) Seal(ctx context.Context, message []byte) ([]byte, error) {
	record, err := c.Encrypt(ctx, message)
	if err != nil {
		return nil, err
	}

	data, err := record.MarshalBinary()
	if err != nil {
		c.logger.Debug("encryption failed", logging.Operation(opEncrypt), logging.Stage("marshal"), logging.Error(err))
		return nil, ErrEncryption
	}
	return data, nil
}

// Open parses a serialised record and decrypts it. Malformed input is
// reported as ErrDecryption.
func (c *EnvelopeCipher) Open(ctx context.Context, data []byte) ([]byte, error) {
	var record EncryptedRecord
	if err := record.UnmarshalBinary(data); err != nil {
		return nil, c.decryptFailed(time.Now(), "unmarshal", err)
	}
	return c.Decrypt(ctx, &record)
}

func (c *EnvelopeCipher) readNonce(nonce []byte) error {
	c.randMu.Lock()
	defer c.randMu.Unlock()

	_, err := io.ReadFull(c.rand, nonce)
	return err
}

func (c *EnvelopeCipher) wipeKey(key []byte) {
	wipe(key)
	if c.metrics != nil {
		c.metrics.RecordKeyWiped()
	}
}

// encryptFailed logs the failing stage and returns the opaque error.
// The cause is kept out of the returned error.
func (c *EnvelopeCipher) encryptFailed(start time.Time, stage string, cause error) error {
	c.recordOperation(opEncrypt, metrics.StatusError, time.Since(start), 0)
	c.logger.Debug("encryption failed", logging.Operation(opEncrypt), logging.Stage(stage), logging.Error(cause))
	return ErrEncryption
}

func (c *EnvelopeCipher) decryptFailed(start time.Time, stage string, cause error) error {
	c.recordOperation(opDecrypt, metrics.StatusError, time.Since(start), 0)
	c.logger.Debug("decryption failed", logging.Operation(opDecrypt), logging.Stage(stage), logging.Error(cause))
	return ErrDecryption
}

func (c *EnvelopeCipher) recordOperation(op, status string, elapsed time.Duration, size int) {
	if c.metrics != nil {
		c.metrics.RecordEnvelopeOperation(op, status, elapsed, size)
	}
}

func (c *EnvelopeCipher) recordProviderCall(call string, err error) {
	if c.metrics != nil {
		c.metrics.RecordKeyProviderCall(call, err)
	}
}
