package fair

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawRange(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 100} {
		for i := 0; i < 200; i++ {
			v, err := Draw(nil, n)
			require.NoError(t, err)
			require.True(t, v >= 0 && v < n, "draw %d outside [0,%d)", v, n)
		}
	}
}

func TestDrawErrors(t *testing.T) {
	_, err := Draw(nil, 0)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = Draw(nil, -3)
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = Draw(iotest.ErrReader(errors.New("boom")), 5)
	assert.ErrorIs(t, err, ErrEntropyUnavailable)
}

// chiSquare returns the chi-square statistic of counts against a uniform
// expectation.
func chiSquare(counts []int, total int) float64 {
	expected := float64(total) / float64(len(counts))
	var sum float64
	for _, c := range counts {
		d := float64(c) - expected
		sum += d * d / expected
	}
	return sum
}

func TestDrawUniform(t *testing.T) {
	const n, trials = 5, 10000
	counts := make([]int, n)
	for i := 0; i < trials; i++ {
		v, err := Draw(nil, n)
		require.NoError(t, err)
		counts[v]++
	}
	// df=4; 30 is far beyond the 99.99th percentile.
	assert.Less(t, chiSquare(counts, trials), 30.0, "counts %v", counts)
}

func TestCombineRange(t *testing.T) {
	for n := 1; n <= 9; n++ {
		for c := 0; c < n; c++ {
			for p := 0; p < n; p++ {
				f := Combine(c, p, n)
				require.True(t, f >= 0 && f < n)
				require.Equal(t, (c+p)%n, f)
			}
		}
	}
}

func TestCombineLargeRange(t *testing.T) {
	const n = math.MaxInt
	tests := []struct {
		committed, peer, want int
	}{
		{n - 1, n - 1, n - 2},
		{n - 1, 1, 0},
		{n - 2, 1, n - 1},
		{0, n - 1, n - 1},
		{n / 2, n/2 + 1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Combine(tt.committed, tt.peer, n), "%d + %d", tt.committed, tt.peer)
	}
}

func TestCombineIsBijectionForFixedCommitment(t *testing.T) {
	// Whatever the host commits to, each peer value maps to a distinct final
	// value, so a uniform peer yields a uniform result.
	for n := 1; n <= 9; n++ {
		for c := 0; c < n; c++ {
			seen := make(map[int]bool, n)
			for p := 0; p < n; p++ {
				seen[Combine(c, p, n)] = true
			}
			assert.Len(t, seen, n, "n=%d committed=%d", n, c)
		}
	}
}

func TestFinalUniformAgainstAdversarialCommitment(t *testing.T) {
	const n, trials = 6, 12000
	rng := rand.New(rand.NewPCG(1, 2))
	for _, committed := range []int{0, n - 1} {
		counts := make([]int, n)
		for i := 0; i < trials; i++ {
			counts[Combine(committed, rng.IntN(n), n)]++
		}
		// df=5
		assert.Less(t, chiSquare(counts, trials), 30.0, "committed=%d counts=%v", committed, counts)
	}
}
