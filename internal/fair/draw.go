package fair

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Draw returns an integer uniformly distributed on [0, n) using entropy.
// rand.Int rejects out-of-range candidates instead of reducing them modulo
// n, so small ranges carry no bias.
func Draw(entropy io.Reader, n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("%w: n=%d", ErrInvalidRange, n)
	}
	if entropy == nil {
		entropy = rand.Reader
	}
	v, err := rand.Int(entropy, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return int(v.Int64()), nil
}

// Combine returns (committed + peer) mod n for values already in [0, n).
// It never forms the sum, so ranges up to math.MaxInt do not overflow.
func Combine(committed, peer, n int) int {
	if committed >= n-peer {
		return committed - (n - peer)
	}
	return committed + peer
}
