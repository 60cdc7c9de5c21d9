package transcript

import (
	"fmt"
	"slices"

	"github.com/lox/fairbox/internal/strategy"
)

// Verify re-checks every exchange against its digest and every round
// against its exchanges. It returns all problems found; an empty result
// means the transcript is consistent.
func Verify(t *Transcript) []error {
	var errs []error
	bySeq := make(map[int]Exchange, len(t.Exchanges))

	for _, ex := range t.Exchanges {
		if _, dup := bySeq[ex.Sequence]; dup {
			errs = append(errs, fmt.Errorf("exchange %d appears twice", ex.Sequence))
			continue
		}
		bySeq[ex.Sequence] = ex
		rec, err := ex.Record()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := rec.Verify(); err != nil {
			errs = append(errs, err)
		}
	}

	for _, r := range t.Rounds {
		if len(r.Exchanges) == 0 {
			errs = append(errs, fmt.Errorf("round %d: no exchanges recorded", r.Number))
			continue
		}
		first, ok := bySeq[r.Exchanges[0]]
		switch {
		case !ok:
			errs = append(errs, fmt.Errorf("round %d: exchange %d missing", r.Number, r.Exchanges[0]))
		case first.N != t.Boxes:
			errs = append(errs, fmt.Errorf("round %d: prize drawn over %d boxes, want %d", r.Number, first.N, t.Boxes))
		case first.Final != r.Prize:
			errs = append(errs, fmt.Errorf("round %d: prize %d does not match exchange %d final value %d", r.Number, r.Prize, first.Sequence, first.Final))
		}
		for _, seq := range r.Exchanges[1:] {
			if _, ok := bySeq[seq]; !ok {
				errs = append(errs, fmt.Errorf("round %d: exchange %d missing", r.Number, seq))
			}
		}
		if err := strategy.CheckElimination(t.Boxes, r.Selected, r.Prize, r.Eliminated); err != nil {
			errs = append(errs, fmt.Errorf("round %d: %w", r.Number, err))
		}
		if r.Other == r.Selected || r.Other < 0 || r.Other >= t.Boxes || slices.Contains(r.Eliminated, r.Other) {
			errs = append(errs, fmt.Errorf("round %d: box %d cannot be the other survivor", r.Number, r.Other))
		}
		final := r.Selected
		if r.Switched {
			final = r.Other
		}
		if won := final == r.Prize; won != r.Won {
			errs = append(errs, fmt.Errorf("round %d: recorded won=%t but final box %d and prize %d", r.Number, r.Won, final, r.Prize))
		}
	}
	return errs
}
