// Package statistics tallies switch/stay outcomes and checks the fairness
// of drawn values.
package statistics

import (
	"fmt"
	"math"
)

// Tally counts rounds and wins for peers who switched and peers who stayed.
type Tally struct {
	SwitchRounds int
	SwitchWins   int
	StayRounds   int
	StayWins     int
}

// Record adds one finished round.
func (t *Tally) Record(switched, won bool) {
	if switched {
		t.SwitchRounds++
		if won {
			t.SwitchWins++
		}
		return
	}
	t.StayRounds++
	if won {
		t.StayWins++
	}
}

// Merge adds the counts of o.
func (t *Tally) Merge(o Tally) {
	t.SwitchRounds += o.SwitchRounds
	t.SwitchWins += o.SwitchWins
	t.StayRounds += o.StayRounds
	t.StayWins += o.StayWins
}

// Rounds returns the total number of recorded rounds.
func (t Tally) Rounds() int {
	return t.SwitchRounds + t.StayRounds
}

// Wins returns the total number of rounds won.
func (t Tally) Wins() int {
	return t.SwitchWins + t.StayWins
}

// Estimates returns the observed win rates. An arm with no rounds has a rate
// of zero.
func (t Tally) Estimates() (switchRate, stayRate float64) {
	return rate(t.SwitchWins, t.SwitchRounds), rate(t.StayWins, t.StayRounds)
}

// ConfidenceInterval95 returns the normal-approximation 95% interval for the
// win rate of one arm, clamped to [0, 1].
func (t Tally) ConfidenceInterval95(switched bool) (float64, float64) {
	wins, rounds := t.StayWins, t.StayRounds
	if switched {
		wins, rounds = t.SwitchWins, t.SwitchRounds
	}
	if rounds == 0 {
		return 0, 1
	}
	p := rate(wins, rounds)
	margin := 1.96 * math.Sqrt(p*(1-p)/float64(rounds))
	return math.Max(0, p-margin), math.Min(1, p+margin)
}

// Validate checks that the counts are consistent.
func (t Tally) Validate() error {
	if t.SwitchRounds < 0 || t.StayRounds < 0 || t.SwitchWins < 0 || t.StayWins < 0 {
		return fmt.Errorf("negative count in %+v", t)
	}
	if t.SwitchWins > t.SwitchRounds {
		return fmt.Errorf("switch wins (%d) exceed switch rounds (%d)", t.SwitchWins, t.SwitchRounds)
	}
	if t.StayWins > t.StayRounds {
		return fmt.Errorf("stay wins (%d) exceed stay rounds (%d)", t.StayWins, t.StayRounds)
	}
	return nil
}

func rate(wins, rounds int) float64 {
	if rounds == 0 {
		return 0
	}
	return float64(wins) / float64(rounds)
}

// Histogram counts how often each value in [0, N) was drawn.
type Histogram struct {
	Counts []int
	Total  int
}

// NewHistogram returns an empty histogram over n buckets.
func NewHistogram(n int) *Histogram {
	return &Histogram{Counts: make([]int, n)}
}

// Add counts v.
func (h *Histogram) Add(v int) error {
	if v < 0 || v >= len(h.Counts) {
		return fmt.Errorf("value %d outside [0,%d)", v, len(h.Counts))
	}
	h.Counts[v]++
	h.Total++
	return nil
}

// Merge adds the counts of o, which must have the same number of buckets.
func (h *Histogram) Merge(o *Histogram) error {
	if len(o.Counts) != len(h.Counts) {
		return fmt.Errorf("histogram size mismatch: %d vs %d", len(h.Counts), len(o.Counts))
	}
	for i, c := range o.Counts {
		h.Counts[i] += c
	}
	h.Total += o.Total
	return nil
}

// ChiSquare returns Pearson's statistic against the uniform distribution.
// It has len(Counts)-1 degrees of freedom.
func (h *Histogram) ChiSquare() float64 {
	if h.Total == 0 || len(h.Counts) == 0 {
		return 0
	}
	expected := float64(h.Total) / float64(len(h.Counts))
	var chi float64
	for _, c := range h.Counts {
		d := float64(c) - expected
		chi += d * d / expected
	}
	return chi
}

// ChiSquareCritical999 approximates the 99.9th percentile of the chi-square
// distribution with df degrees of freedom (Wilson-Hilferty).
func ChiSquareCritical999(df int) float64 {
	if df < 1 {
		return 0
	}
	const z = 3.0902
	k := float64(df)
	a := 2 / (9 * k)
	return k * math.Pow(1-a+z*math.Sqrt(a), 3)
}

// Uniform reports whether the histogram is consistent with a uniform draw at
// the 0.1% significance level.
func (h *Histogram) Uniform() bool {
	return h.ChiSquare() < ChiSquareCritical999(len(h.Counts)-1)
}
