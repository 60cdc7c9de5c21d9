// Package strategy defines how the host removes boxes once the peer has made
// a selection, and how strategies are looked up by name.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/lox/fairbox/internal/fair"
)

// ErrEliminationInvariant means a strategy produced an elimination set that
// would remove the prize, keep the wrong boxes, or leave other than two
// boxes. It indicates a bug in the strategy and must abort the round.
var ErrEliminationInvariant = errors.New("strategy: elimination invariant violated")

// MinBoxes is the smallest game a removal strategy can run.
const MinBoxes = 3

// FairSource produces jointly determined random values.
// *fair.Protocol satisfies it.
type FairSource interface {
	GenerateFairValue(ctx context.Context, n int, purpose string) (int, error)
}

// Odds holds the theoretical win probabilities for each final move.
type Odds struct {
	Switch float64
	Stay   float64
}

// Strategy removes boxes that are not the prize.
type Strategy interface {
	// Name identifies the strategy in output and transcripts.
	Name() string

	// Eliminate returns exactly boxes-2 box indices in ascending order.
	// Neither the prize nor the selected box is ever included.
	Eliminate(ctx context.Context, selected, prize int) ([]int, error)

	// Odds returns the theoretical win probabilities.
	Odds() Odds

	// HidingFlavor is shown while the prize is being hidden.
	HidingFlavor() string
}

// Factory builds a strategy for a game of the given size.
type Factory func(boxes int, source FairSource) (Strategy, error)

// CheckElimination verifies the postconditions of Eliminate.
func CheckElimination(boxes, selected, prize int, eliminated []int) error {
	if len(eliminated) != boxes-2 {
		return fmt.Errorf("%w: eliminated %d boxes, want %d", ErrEliminationInvariant, len(eliminated), boxes-2)
	}
	seen := make(map[int]bool, len(eliminated))
	for _, box := range eliminated {
		switch {
		case box < 0 || box >= boxes:
			return fmt.Errorf("%w: box %d outside [0,%d)", ErrEliminationInvariant, box, boxes)
		case seen[box]:
			return fmt.Errorf("%w: box %d eliminated twice", ErrEliminationInvariant, box)
		case box == prize:
			return fmt.Errorf("%w: prize box %d eliminated", ErrEliminationInvariant, box)
		case box == selected:
			return fmt.Errorf("%w: selected box %d eliminated", ErrEliminationInvariant, box)
		}
		seen[box] = true
	}
	return nil
}

// Survivors returns the boxes not in eliminated, in ascending order.
func Survivors(boxes int, eliminated []int) []int {
	removed := make(map[int]bool, len(eliminated))
	for _, box := range eliminated {
		removed[box] = true
	}
	var out []int
	for box := 0; box < boxes; box++ {
		if !removed[box] {
			out = append(out, box)
		}
	}
	return out
}

// ClassicOdds are the odds of any strategy that always leaves the prize in
// play: staying wins only if the first pick was right.
func ClassicOdds(boxes int) Odds {
	n := float64(boxes)
	return Odds{Switch: (n - 1) / n, Stay: 1 / n}
}

func checkBoxes(boxes int) error {
	if boxes < MinBoxes {
		return fmt.Errorf("%w: need at least %d boxes, got %d", fair.ErrInvalidRange, MinBoxes, boxes)
	}
	return nil
}

func checkPicks(boxes, selected, prize int) error {
	if selected < 0 || selected >= boxes {
		return fmt.Errorf("%w: selected box %d outside [0,%d)", fair.ErrInvalidRange, selected, boxes)
	}
	if prize < 0 || prize >= boxes {
		return fmt.Errorf("%w: prize box %d outside [0,%d)", fair.ErrInvalidRange, prize, boxes)
	}
	return nil
}

// without returns 0..boxes-1 minus the excluded boxes.
func without(boxes int, excluded ...int) []int {
	out := make([]int, 0, boxes)
	for box := 0; box < boxes; box++ {
		skip := false
		for _, ex := range excluded {
			if box == ex {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, box)
		}
	}
	return out
}

func finish(boxes, selected, prize int, eliminated []int) ([]int, error) {
	sort.Ints(eliminated)
	if err := CheckElimination(boxes, selected, prize, eliminated); err != nil {
		return nil, err
	}
	return eliminated, nil
}
