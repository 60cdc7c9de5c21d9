package peer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Policy decides whether an automatic peer switches boxes.
type Policy string

const (
	PolicySwitch Policy = "switch"
	PolicyStay   Policy = "stay"
	PolicyRandom Policy = "random"
)

// ParsePolicy accepts "switch", "stay" or "random".
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicySwitch, PolicyStay, PolicyRandom:
		return p, nil
	default:
		return "", fmt.Errorf("unknown policy %q (want switch, stay or random)", s)
	}
}

// Auto is a peer that answers from a seeded generator and plays a fixed
// number of rounds. It is not safe for concurrent use.
type Auto struct {
	rng    *rand.Rand
	policy Policy
	rounds int
	played int
}

// NewAuto returns a peer playing rounds rounds with the given policy.
func NewAuto(rng *rand.Rand, policy Policy, rounds int) *Auto {
	return &Auto{rng: rng, policy: policy, rounds: rounds}
}

func (a *Auto) RequestInt(ctx context.Context, min, max int, prompt string) (int, error) {
	return min + a.rng.IntN(max-min), nil
}

func (a *Auto) ChooseSlot(ctx context.Context, n int, prompt string) (int, error) {
	return a.rng.IntN(n), nil
}

func (a *Auto) DecideSwitch(ctx context.Context, selected, other int) (bool, error) {
	switch a.policy {
	case PolicySwitch:
		return true, nil
	case PolicyStay:
		return false, nil
	default:
		return a.rng.IntN(2) == 1, nil
	}
}

// Confirm counts completed rounds and declines once the quota is reached.
func (a *Auto) Confirm(ctx context.Context, prompt string) (bool, error) {
	a.played++
	return a.played < a.rounds, nil
}
