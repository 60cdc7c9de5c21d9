package strategy

import (
	"context"
	"fmt"
)

// Deterministic removes the lowest-indexed boxes that are neither the prize
// nor the selection. It still runs one fair-value exchange so that it is
// indistinguishable from Uniform by exchange count.
type Deterministic struct {
	boxes  int
	source FairSource
}

// NewDeterministic is a Factory for Deterministic.
func NewDeterministic(boxes int, source FairSource) (Strategy, error) {
	if err := checkBoxes(boxes); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: deterministic strategy needs a fair source", ErrStrategyInvalid)
	}
	return &Deterministic{boxes: boxes, source: source}, nil
}

func (d *Deterministic) Name() string { return "deterministic" }

// Odds match Uniform: the prize placement, not the removal order, decides
// whether staying wins.
func (d *Deterministic) Odds() Odds { return ClassicOdds(d.boxes) }

func (d *Deterministic) HidingFlavor() string {
	return "Uh, I'm hiding your portal gun now, Rick. Try not to break anything this time."
}

func (d *Deterministic) Eliminate(ctx context.Context, selected, prize int) ([]int, error) {
	if err := checkPicks(d.boxes, selected, prize); err != nil {
		return nil, err
	}

	candidates := without(d.boxes, prize, selected)
	eliminated := append([]int(nil), candidates[:d.boxes-2]...)

	if _, err := d.source.GenerateFairValue(ctx, d.boxes-1, "to keep the protocol consistent (value is not used)"); err != nil {
		return nil, err
	}
	return finish(d.boxes, selected, prize, eliminated)
}
