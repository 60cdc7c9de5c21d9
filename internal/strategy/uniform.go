package strategy

import (
	"context"
	"fmt"
)

// Uniform keeps a fairly chosen non-prize box when the peer picked the
// prize, and otherwise removes everything but the selected and prize boxes.
// Either branch costs exactly one fair-value exchange over boxes-1, so the
// number of exchanges does not reveal which branch ran.
type Uniform struct {
	boxes  int
	source FairSource
}

// NewUniform is a Factory for Uniform.
func NewUniform(boxes int, source FairSource) (Strategy, error) {
	if err := checkBoxes(boxes); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, fmt.Errorf("%w: uniform strategy needs a fair source", ErrStrategyInvalid)
	}
	return &Uniform{boxes: boxes, source: source}, nil
}

func (u *Uniform) Name() string { return "uniform" }

func (u *Uniform) Odds() Odds { return ClassicOdds(u.boxes) }

func (u *Uniform) HidingFlavor() string {
	return "Oh geez, Rick, I'm gonna hide your portal gun in one of the boxes, okay?"
}

func (u *Uniform) Eliminate(ctx context.Context, selected, prize int) ([]int, error) {
	if err := checkPicks(u.boxes, selected, prize); err != nil {
		return nil, err
	}

	candidates := without(u.boxes, prize)
	if selected == prize {
		keep, err := u.source.GenerateFairValue(ctx, u.boxes-1, "to select a box to keep, since you guessed correctly")
		if err != nil {
			return nil, err
		}
		if keep < 0 || keep >= len(candidates) {
			return nil, fmt.Errorf("%w: keep index %d outside [0,%d)", ErrEliminationInvariant, keep, len(candidates))
		}
		eliminated := make([]int, 0, u.boxes-2)
		for i, box := range candidates {
			if i != keep {
				eliminated = append(eliminated, box)
			}
		}
		return finish(u.boxes, selected, prize, eliminated)
	}

	if _, err := u.source.GenerateFairValue(ctx, u.boxes-1, "to keep the protocol consistent (value is not used in this case)"); err != nil {
		return nil, err
	}
	return finish(u.boxes, selected, prize, without(u.boxes, prize, selected))
}
