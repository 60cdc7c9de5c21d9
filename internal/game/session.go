package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/lox/fairbox/internal/fair"
	"github.com/lox/fairbox/internal/statistics"
	"github.com/lox/fairbox/internal/strategy"
	"github.com/rs/zerolog"
)

// Peer is everything the session asks of the other party.
type Peer interface {
	fair.PeerInput

	// ChooseSlot returns the box the peer picks, in [0, n).
	ChooseSlot(ctx context.Context, n int, prompt string) (int, error)

	// DecideSwitch reports whether the peer trades selected for other.
	DecideSwitch(ctx context.Context, selected, other int) (bool, error)

	// Confirm answers a yes/no question.
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Config describes a game.
type Config struct {
	Boxes    int
	PeerName string
}

// RoundResult is the outcome of one completed round.
type RoundResult struct {
	Round      int
	Boxes      int
	Strategy   string
	Prize      int
	Selected   int
	Eliminated []int
	Other      int
	Switched   bool
	Final      int
	Won        bool
	Exchanges  []fair.Record
}

// Observer is told about every completed round.
type Observer interface {
	RoundCompleted(r RoundResult)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(RoundResult)

func (f ObserverFunc) RoundCompleted(r RoundResult) { f(r) }

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithObserver registers observers for completed rounds.
func WithObserver(obs ...Observer) Option {
	return func(s *Session) { s.observers = append(s.observers, obs...) }
}

// Session plays rounds between a host and a peer. It is not safe for
// concurrent use.
type Session struct {
	cfg       Config
	host      *fair.Protocol
	strat     strategy.Strategy
	peer      Peer
	out       fair.Output
	logger    zerolog.Logger
	observers []Observer

	round int
	tally statistics.Tally
}

// NewSession validates cfg and wires the parties together. The strategy
// should draw from host so that its exchanges are disclosed with the round.
func NewSession(cfg Config, host *fair.Protocol, strat strategy.Strategy, peer Peer, out fair.Output, opts ...Option) (*Session, error) {
	if cfg.Boxes < strategy.MinBoxes {
		return nil, fmt.Errorf("%w: need at least %d boxes, got %d", fair.ErrInvalidRange, strategy.MinBoxes, cfg.Boxes)
	}
	if host == nil || strat == nil || peer == nil {
		return nil, errors.New("game: session needs a host, a strategy and a peer")
	}
	if cfg.PeerName == "" {
		cfg.PeerName = "Rick"
	}
	s := &Session{
		cfg:    cfg,
		host:   host,
		strat:  strat,
		peer:   peer,
		out:    out,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("strategy", strat.Name()).Int("boxes", cfg.Boxes).Logger()
	return s, nil
}

// Tally returns the statistics of all completed rounds.
func (s *Session) Tally() statistics.Tally {
	return s.tally
}

// PlayRound plays one round. Any error aborts the round; nothing is recorded
// for it.
func (s *Session) PlayRound(ctx context.Context) (RoundResult, error) {
	round := s.round + 1
	n := s.cfg.Boxes
	log := s.logger.With().Int("round", round).Logger()
	res := RoundResult{Round: round, Boxes: n, Strategy: s.strat.Name()}
	firstSeq := s.host.LastSequence()

	s.emit("--- ROUND %d ---", round)
	s.say("%s", s.strat.HidingFlavor())

	prize, err := s.host.GenerateFairValue(ctx, n, "to select the prize location")
	if err != nil {
		return RoundResult{}, s.abort(log, round, "hide prize", err)
	}
	res.Prize = prize

	selected, err := s.peer.ChooseSlot(ctx, n, "Okay, okay, I hid the gun. What's your guess")
	if err != nil {
		return RoundResult{}, s.abort(log, round, "choose box", peerErr(err))
	}
	if selected < 0 || selected >= n {
		return RoundResult{}, s.abort(log, round, "choose box", fmt.Errorf("%w: selected box %d outside [0,%d)", fair.ErrInvalidRange, selected, n))
	}
	res.Selected = selected

	s.say("Now I'm going to remove %d empty boxes...", n-2)
	eliminated, err := s.strat.Eliminate(ctx, selected, prize)
	if err != nil {
		return RoundResult{}, s.abort(log, round, "eliminate", err)
	}
	if err := strategy.CheckElimination(n, selected, prize, eliminated); err != nil {
		return RoundResult{}, s.abort(log, round, "eliminate", err)
	}
	res.Eliminated = append([]int(nil), eliminated...)
	res.Other = otherSurvivor(strategy.Survivors(n, eliminated), selected)

	s.say("I'm keeping the box you chose, box %d, and box %d.", selected, res.Other)
	switched, err := s.peer.DecideSwitch(ctx, selected, res.Other)
	if err != nil {
		return RoundResult{}, s.abort(log, round, "decide", peerErr(err))
	}
	res.Switched = switched
	res.Final = selected
	if switched {
		res.Final = res.Other
	}

	res.Exchanges = s.host.Since(firstSeq)
	for _, rec := range res.Exchanges {
		if err := s.host.Disclose(ctx, rec); err != nil {
			return RoundResult{}, s.abort(log, round, "disclose", err)
		}
	}

	res.Won = res.Final == prize
	s.say("Your portal gun is in the box %d.", prize)
	if res.Won {
		s.say("Awww yeah, you got it, %s! You won!", s.cfg.PeerName)
	} else {
		s.say("Aww man, you lost, %s. Now we gotta go on one of *my* adventures!", s.cfg.PeerName)
	}

	s.round = round
	s.tally.Record(res.Switched, res.Won)
	for _, o := range s.observers {
		o.RoundCompleted(res)
	}
	log.Info().
		Int("prize", prize).
		Int("selected", selected).
		Bool("switched", switched).
		Bool("won", res.Won).
		Int("exchanges", len(res.Exchanges)).
		Msg("Round complete")
	return res, nil
}

// Run plays rounds until the peer declines another one, then emits the
// summary table.
func (s *Session) Run(ctx context.Context) (statistics.Tally, error) {
	for {
		if _, err := s.PlayRound(ctx); err != nil {
			return s.tally, err
		}
		again, err := s.peer.Confirm(ctx, "D-do you wanna play another round")
		if err != nil {
			return s.tally, peerErr(err)
		}
		if !again {
			break
		}
	}
	s.say("Okay… uh, bye!")
	s.emit("%s", s.Summary())
	return s.tally, nil
}

// Summary renders the results table for the rounds played so far.
func (s *Session) Summary() string {
	return "GAME STATS\n" + statistics.RenderTable(s.tally, s.strat.Odds())
}

func (s *Session) abort(log zerolog.Logger, round int, step string, err error) error {
	log.Warn().Err(err).Str("step", step).Msg("Round aborted")
	return fmt.Errorf("round %d: %s: %w", round, step, err)
}

func (s *Session) say(format string, args ...any) {
	s.emit("%s: %s", s.host.Name(), fmt.Sprintf(format, args...))
}

func (s *Session) emit(format string, args ...any) {
	if s.out != nil {
		s.out.Emit(fmt.Sprintf(format, args...))
	}
}

// peerErr marks a failed peer answer as unavailable input, unless the port
// already said so.
func peerErr(err error) error {
	if errors.Is(err, fair.ErrPeerInputUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", fair.ErrPeerInputUnavailable, err)
}

func otherSurvivor(survivors []int, selected int) int {
	for _, box := range survivors {
		if box != selected {
			return box
		}
	}
	return selected
}
