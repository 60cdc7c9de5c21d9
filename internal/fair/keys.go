// Package fair implements the two-party commit/reveal protocol used to
// produce random values that neither the host nor the peer can bias alone.
//
// For each exchange the host draws a secret value, publishes an HMAC-SHA3-256
// digest of it keyed by a one-time secret, waits for the peer's contribution,
// and combines both as (host + peer) mod N. Revealing the secret afterwards
// lets anyone recompute the digest and the arithmetic.
package fair

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// SecretSize is the length in bytes of every generated secret (256 bits).
const SecretSize = 32

// Secret is the one-time key material for a single exchange.
type Secret []byte

// Hex renders the secret as lowercase hex. The hex text is what gets shown
// to the peer and is itself used as the MAC key.
func (s Secret) Hex() string {
	return hex.EncodeToString(s)
}

// Clone returns an independent copy.
func (s Secret) Clone() Secret {
	if s == nil {
		return nil
	}
	out := make(Secret, len(s))
	copy(out, s)
	return out
}

// ParseSecret decodes a secret previously rendered with Hex.
func ParseSecret(s string) (Secret, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	if len(b) < SecretSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidKeyMaterial, len(b), SecretSize)
	}
	return Secret(b), nil
}

// KeyGenerator produces fresh secrets from a secure entropy source.
type KeyGenerator struct {
	entropy io.Reader
}

// NewKeyGenerator returns a generator reading from entropy, or from
// crypto/rand when entropy is nil.
func NewKeyGenerator(entropy io.Reader) *KeyGenerator {
	if entropy == nil {
		entropy = rand.Reader
	}
	return &KeyGenerator{entropy: entropy}
}

// Generate returns a new SecretSize-byte secret.
func (g *KeyGenerator) Generate() (Secret, error) {
	secret := make(Secret, SecretSize)
	if _, err := io.ReadFull(g.entropy, secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return secret, nil
}
