package strategy

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lox/fairbox/internal/fair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource returns scripted values and records each request.
type fakeSource struct {
	values []int
	ranges []int
	err    error
}

func (f *fakeSource) GenerateFairValue(ctx context.Context, n int, purpose string) (int, error) {
	f.ranges = append(f.ranges, n)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.values) == 0 {
		return 0, nil
	}
	v := f.values[0]
	f.values = f.values[1:]
	return v, nil
}

func TestUniformForcedBranchThreeBoxes(t *testing.T) {
	src := &fakeSource{values: []int{1}}
	s, err := NewUniform(3, src)
	require.NoError(t, err)

	eliminated, err := s.Eliminate(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, eliminated)
	assert.Equal(t, []int{0, 1}, Survivors(3, eliminated))
	assert.Equal(t, []int{2}, src.ranges, "one dummy exchange over N-1")
}

func TestUniformCorrectGuessFiveBoxes(t *testing.T) {
	// Non-prize boxes in order are 0, 1, 3, 4; the keep index picks one.
	candidates := []int{0, 1, 3, 4}
	for keep := 0; keep < 4; keep++ {
		t.Run(fmt.Sprintf("keep=%d", keep), func(t *testing.T) {
			src := &fakeSource{values: []int{keep}}
			s, err := NewUniform(5, src)
			require.NoError(t, err)

			eliminated, err := s.Eliminate(context.Background(), 2, 2)
			require.NoError(t, err)
			assert.Len(t, eliminated, 3)
			assert.NotContains(t, eliminated, 2)
			assert.NotContains(t, eliminated, candidates[keep])
			assert.Equal(t, []int{4}, src.ranges)

			survivors := Survivors(5, eliminated)
			assert.ElementsMatch(t, []int{2, candidates[keep]}, survivors)
		})
	}
}

func TestDeterministicEliminatesLowestBoxes(t *testing.T) {
	tests := []struct {
		boxes, selected, prize int
		want                   []int
	}{
		{5, 0, 4, []int{1, 2, 3}},
		{5, 2, 2, []int{0, 1, 3}},
		{3, 2, 2, []int{0}},
		{3, 1, 0, []int{2}},
		{4, 3, 0, []int{1, 2}},
	}
	for _, tt := range tests {
		src := &fakeSource{}
		s, err := NewDeterministic(tt.boxes, src)
		require.NoError(t, err)

		got, err := s.Eliminate(context.Background(), tt.selected, tt.prize)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "boxes=%d selected=%d prize=%d", tt.boxes, tt.selected, tt.prize)
		assert.Equal(t, []int{tt.boxes - 1}, src.ranges, "dummy exchange over N-1")
	}
}

func TestEliminationPostconditionsForAllInputs(t *testing.T) {
	factories := map[string]Factory{"uniform": NewUniform, "deterministic": NewDeterministic}
	for name, factory := range factories {
		for boxes := MinBoxes; boxes <= 8; boxes++ {
			for selected := 0; selected < boxes; selected++ {
				for prize := 0; prize < boxes; prize++ {
					for keep := 0; keep < boxes-1; keep++ {
						src := &fakeSource{values: []int{keep}}
						s, err := factory(boxes, src)
						require.NoError(t, err)

						eliminated, err := s.Eliminate(context.Background(), selected, prize)
						require.NoError(t, err, "%s boxes=%d selected=%d prize=%d", name, boxes, selected, prize)
						require.Len(t, eliminated, boxes-2)
						require.NotContains(t, eliminated, prize)
						require.NotContains(t, eliminated, selected)
						require.Len(t, src.ranges, 1, "%s must run exactly one exchange", name)

						survivors := Survivors(boxes, eliminated)
						require.Len(t, survivors, 2)
						require.Contains(t, survivors, prize)
						require.Contains(t, survivors, selected)
					}
				}
			}
		}
	}
}

func TestFactoriesRejectSmallGames(t *testing.T) {
	for _, factory := range []Factory{NewUniform, NewDeterministic} {
		for _, boxes := range []int{-1, 0, 1, 2} {
			_, err := factory(boxes, &fakeSource{})
			assert.ErrorIs(t, err, fair.ErrInvalidRange)
		}
		_, err := factory(3, nil)
		assert.ErrorIs(t, err, ErrStrategyInvalid)
	}
}

func TestEliminateRejectsBadPicks(t *testing.T) {
	s, err := NewUniform(4, &fakeSource{})
	require.NoError(t, err)

	for _, picks := range [][2]int{{-1, 0}, {4, 0}, {0, -1}, {0, 4}} {
		_, err := s.Eliminate(context.Background(), picks[0], picks[1])
		assert.ErrorIs(t, err, fair.ErrInvalidRange)
	}
}

func TestEliminatePropagatesSourceErrors(t *testing.T) {
	boom := errors.New("peer gone")
	for _, factory := range []Factory{NewUniform, NewDeterministic} {
		s, err := factory(4, &fakeSource{err: boom})
		require.NoError(t, err)

		for _, prize := range []int{0, 1} {
			eliminated, err := s.Eliminate(context.Background(), 0, prize)
			assert.ErrorIs(t, err, boom)
			assert.Nil(t, eliminated)
		}
	}
}

func TestUniformRejectsOutOfRangeKeep(t *testing.T) {
	s, err := NewUniform(4, &fakeSource{values: []int{3}})
	require.NoError(t, err)
	_, err = s.Eliminate(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrEliminationInvariant)
}

func TestCheckElimination(t *testing.T) {
	tests := []struct {
		name       string
		boxes      int
		selected   int
		prize      int
		eliminated []int
		ok         bool
	}{
		{"valid forced", 4, 0, 1, []int{2, 3}, true},
		{"valid correct guess", 4, 1, 1, []int{0, 3}, true},
		{"too few", 4, 0, 1, []int{2}, false},
		{"too many", 4, 0, 1, []int{2, 3, 0}, false},
		{"prize removed", 4, 0, 1, []int{1, 2}, false},
		{"selection removed", 4, 0, 1, []int{0, 2}, false},
		{"duplicate", 4, 0, 1, []int{2, 2}, false},
		{"out of range", 4, 0, 1, []int{2, 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckElimination(tt.boxes, tt.selected, tt.prize, tt.eliminated)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrEliminationInvariant)
			}
		})
	}
}

func TestOdds(t *testing.T) {
	for _, factory := range []Factory{NewUniform, NewDeterministic} {
		s, err := factory(3, &fakeSource{})
		require.NoError(t, err)
		odds := s.Odds()
		assert.InDelta(t, 2.0/3.0, odds.Switch, 1e-9)
		assert.InDelta(t, 1.0/3.0, odds.Stay, 1e-9)
		assert.NotEmpty(t, s.HidingFlavor())
		assert.NotEmpty(t, s.Name())
	}
	odds := ClassicOdds(10)
	assert.InDelta(t, 1.0, odds.Switch+odds.Stay, 1e-9)
}
