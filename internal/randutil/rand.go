// Package randutil derives reproducible generators for simulations. Nothing
// here is used for the fair protocol itself, which draws from crypto/rand.
package randutil

import rand "math/rand/v2"

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Derive returns the generator for one numbered stream of a seeded run, so
// parallel workers get independent but reproducible sequences.
func Derive(seed int64, stream int) *rand.Rand {
	u := mix(uint64(seed)) ^ mix(uint64(stream)*goldenRatio64+1)
	return rand.New(rand.NewPCG(u, mix(u+goldenRatio64)))
}

// Reader adapts a generator to io.Reader. Simulations hand it to the fair
// protocol as entropy so seeded runs replay exactly.
type Reader struct {
	rng *rand.Rand
}

// NewReader wraps rng.
func NewReader(rng *rand.Rand) *Reader {
	return &Reader{rng: rng}
}

func (r *Reader) Read(p []byte) (int, error) {
	for i := 0; i < len(p); {
		v := r.rng.Uint64()
		for j := 0; j < 8 && i < len(p); j++ {
			p[i] = byte(v)
			v >>= 8
			i++
		}
	}
	return len(p), nil
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
