package peer

import (
	"context"
	"fmt"
	"sync"

	"github.com/lox/fairbox/internal/fair"
)

// Script answers from fixed queues and reports the input as unavailable
// once a queue runs dry.
type Script struct {
	mu       sync.Mutex
	Ints     []int  // fair-value contributions, in order
	Slots    []int  // box selections
	Switches []bool // final moves
	Again    []bool // answers to "play another round"
}

func (s *Script) RequestInt(ctx context.Context, min, max int, prompt string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Ints) == 0 {
		return 0, fmt.Errorf("%w: script has no more values", fair.ErrPeerInputUnavailable)
	}
	v := s.Ints[0]
	s.Ints = s.Ints[1:]
	return v, nil
}

func (s *Script) ChooseSlot(ctx context.Context, n int, prompt string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Slots) == 0 {
		return 0, fmt.Errorf("%w: script has no more selections", fair.ErrPeerInputUnavailable)
	}
	v := s.Slots[0]
	s.Slots = s.Slots[1:]
	return v, nil
}

func (s *Script) DecideSwitch(ctx context.Context, selected, other int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Switches) == 0 {
		return false, fmt.Errorf("%w: script has no more moves", fair.ErrPeerInputUnavailable)
	}
	v := s.Switches[0]
	s.Switches = s.Switches[1:]
	return v, nil
}

func (s *Script) Confirm(ctx context.Context, prompt string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Again) == 0 {
		return false, nil
	}
	v := s.Again[0]
	s.Again = s.Again[1:]
	return v, nil
}
