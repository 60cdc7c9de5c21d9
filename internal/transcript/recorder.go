package transcript

import (
	"sync"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/lox/fairbox/internal/game"
)

// Recorder builds a transcript from a running session. Register it with
// game.WithObserver.
type Recorder struct {
	mu sync.Mutex
	t  Transcript
}

// NewRecorder starts a transcript with a fresh time-ordered session id.
func NewRecorder(host, strategy string, boxes int, clock quartz.Clock) *Recorder {
	if clock == nil {
		clock = quartz.NewReal()
	}
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return &Recorder{t: Transcript{
		Version:  Version,
		Session:  id.String(),
		Host:     host,
		Strategy: strategy,
		Boxes:    boxes,
		Started:  clock.Now().UTC(),
	}}
}

// Session returns the transcript's session id.
func (r *Recorder) Session() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.t.Session
}

// RoundCompleted appends the round and its exchanges.
func (r *Recorder) RoundCompleted(res game.RoundResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	round := Round{
		Number:     res.Round,
		Prize:      res.Prize,
		Selected:   res.Selected,
		Eliminated: append([]int(nil), res.Eliminated...),
		Other:      res.Other,
		Switched:   res.Switched,
		Won:        res.Won,
	}
	for _, rec := range res.Exchanges {
		r.t.Exchanges = append(r.t.Exchanges, FromRecord(res.Round, rec))
		round.Exchanges = append(round.Exchanges, rec.Sequence)
	}
	r.t.Rounds = append(r.t.Rounds, round)
}

// Transcript returns a snapshot of everything recorded so far.
func (r *Recorder) Transcript() *Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.t
	t.Exchanges = append([]Exchange(nil), r.t.Exchanges...)
	t.Rounds = make([]Round, len(r.t.Rounds))
	for i, round := range r.t.Rounds {
		round.Eliminated = append([]int(nil), round.Eliminated...)
		round.Exchanges = append([]int(nil), round.Exchanges...)
		t.Rounds[i] = round
	}
	return &t
}

// Save writes the current snapshot to path.
func (r *Recorder) Save(path string) error {
	return Save(path, r.Transcript())
}
