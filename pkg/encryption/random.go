package encryption

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20"
)

// reseedInterval bounds the output drawn from one seed. It is far below the
// 256 GiB at which the ChaCha20 block counter would wrap.
const reseedInterval = 1 << 30

// keystream is a ChaCha20-based generator seeded from an entropy source.
// It is not safe for concurrent use; EnvelopeCipher serialises access.
type keystream struct {
	entropy io.Reader
	stream  *chacha20.Cipher
	drawn   int
}

// newKeystream seeds a generator from entropy. A nil entropy reads from
// crypto/rand.
func newKeystream(entropy io.Reader) (*keystream, error) {
	if entropy == nil {
		entropy = rand.Reader
	}

	ks := &keystream{entropy: entropy}
	if err := ks.reseed(); err != nil {
		return nil, err
	}
	return ks, nil
}

func (ks *keystream) reseed() error {
	seed := make([]byte, chacha20.KeySize+chacha20.NonceSize)
	defer wipe(seed)

	if _, err := io.ReadFull(ks.entropy, seed); err != nil {
		return fmt.Errorf("failed to seed generator: %w", err)
	}

	stream, err := chacha20.NewUnauthenticatedCipher(seed[:chacha20.KeySize], seed[chacha20.KeySize:])
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	ks.stream = stream
	ks.drawn = 0
	return nil
}

// Read fills p with keystream output.
func (ks *keystream) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		chunk := min(len(p)-n, reseedInterval)
		if ks.drawn+chunk > reseedInterval {
			if err := ks.reseed(); err != nil {
				return n, err
			}
		}

		out := p[n : n+chunk]
		clear(out)
		ks.stream.XORKeyStream(out, out)
		ks.drawn += chunk
		n += chunk
	}
	return n, nil
}
