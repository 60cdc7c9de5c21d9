// Package simulator plays many automated rounds to check the strategies'
// odds and the uniformity of hidden prizes.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lox/fairbox/internal/display"
	"github.com/lox/fairbox/internal/fair"
	"github.com/lox/fairbox/internal/game"
	"github.com/lox/fairbox/internal/peer"
	"github.com/lox/fairbox/internal/randutil"
	"github.com/lox/fairbox/internal/statistics"
	"github.com/lox/fairbox/internal/strategy"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for running simulations
type Config struct {
	Rounds   int
	Workers  int
	Boxes    int
	Seed     int64
	Policy   peer.Policy
	Strategy strategy.Factory

	// Reproducible derives the host's entropy from Seed as well, so a run
	// can be replayed exactly. Otherwise the host draws from crypto/rand.
	Reproducible bool

	Logger zerolog.Logger
}

// Result is the merged outcome of all workers.
type Result struct {
	Config    Config
	Strategy  string
	Tally     statistics.Tally
	Prizes    *statistics.Histogram
	Exchanges int
	Odds      strategy.Odds
	Elapsed   time.Duration
}

// Simulator runs automated sessions in parallel.
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.Policy == "" {
		config.Policy = peer.PolicyRandom
	}
	return &Simulator{config: config}
}

type workerResult struct {
	tally     statistics.Tally
	prizes    *statistics.Histogram
	exchanges int
	strategy  string
	odds      strategy.Odds
}

// Run plays Config.Rounds rounds split across the workers.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	cfg := s.config
	if cfg.Rounds < 1 {
		return nil, fmt.Errorf("simulator: rounds must be positive, got %d", cfg.Rounds)
	}
	if cfg.Boxes < strategy.MinBoxes {
		return nil, fmt.Errorf("%w: need at least %d boxes, got %d", fair.ErrInvalidRange, strategy.MinBoxes, cfg.Boxes)
	}
	if cfg.Strategy == nil {
		return nil, errors.New("simulator: no strategy factory")
	}

	workers := min(cfg.Workers, cfg.Rounds)
	perWorker := cfg.Rounds / workers
	remainder := cfg.Rounds % workers
	results := make([]workerResult, workers)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		rounds := perWorker
		if w < remainder {
			rounds++
		}
		g.Go(func() error {
			res, err := s.runWorker(ctx, w, rounds)
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			results[w] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{
		Config:   cfg,
		Prizes:   statistics.NewHistogram(cfg.Boxes),
		Strategy: results[0].strategy,
		Odds:     results[0].odds,
		Elapsed:  time.Since(start),
	}
	for _, r := range results {
		out.Tally.Merge(r.tally)
		out.Exchanges += r.exchanges
		if err := out.Prizes.Merge(r.prizes); err != nil {
			return nil, err
		}
	}
	if err := out.Tally.Validate(); err != nil {
		return nil, fmt.Errorf("statistics validation failed: %w", err)
	}
	if out.Tally.Rounds() != cfg.Rounds {
		return nil, fmt.Errorf("statistics validation failed: played %d rounds, want %d", out.Tally.Rounds(), cfg.Rounds)
	}
	return out, nil
}

func (s *Simulator) runWorker(ctx context.Context, id, rounds int) (workerResult, error) {
	cfg := s.config
	log := cfg.Logger.With().Int("worker", id).Logger()

	auto := peer.NewAuto(randutil.Derive(cfg.Seed, 2*id), cfg.Policy, rounds)
	opts := []fair.Option{fair.WithLogger(log)}
	if cfg.Reproducible {
		opts = append(opts, fair.WithEntropy(randutil.NewReader(randutil.Derive(cfg.Seed, 2*id+1))))
	}
	host := fair.New("Morty", auto, display.Discard{}, opts...)
	defer host.Close()

	strat, err := cfg.Strategy(cfg.Boxes, host)
	if err != nil {
		return workerResult{}, err
	}

	prizes := statistics.NewHistogram(cfg.Boxes)
	var histErr error
	session, err := game.NewSession(game.Config{Boxes: cfg.Boxes}, host, strat, auto, nil,
		game.WithLogger(log),
		game.WithObserver(game.ObserverFunc(func(r game.RoundResult) {
			if err := prizes.Add(r.Prize); err != nil && histErr == nil {
				histErr = err
			}
		})),
	)
	if err != nil {
		return workerResult{}, err
	}

	for i := 0; i < rounds; i++ {
		if _, err := session.PlayRound(ctx); err != nil {
			return workerResult{}, err
		}
	}
	if histErr != nil {
		return workerResult{}, histErr
	}
	log.Debug().Int("rounds", rounds).Msg("Worker finished")

	return workerResult{
		tally:     session.Tally(),
		prizes:    prizes,
		exchanges: host.LastSequence(),
		strategy:  strat.Name(),
		odds:      strat.Odds(),
	}, nil
}

// PrintSummary writes a summary of simulation results to w.
func PrintSummary(w io.Writer, res *Result) {
	t := res.Tally
	fmt.Fprintf(w, "\n=== %s strategy, %d boxes, policy %s ===\n", res.Strategy, res.Config.Boxes, res.Config.Policy)
	fmt.Fprintf(w, "Rounds played: %d (%d exchanges) in %v\n", t.Rounds(), res.Exchanges, res.Elapsed.Round(time.Millisecond))
	fmt.Fprintln(w, statistics.RenderTable(t, res.Odds))

	fmt.Fprintf(w, "\n=== CONFIDENCE ===\n")
	if t.SwitchRounds > 0 {
		lo, hi := t.ConfidenceInterval95(true)
		fmt.Fprintf(w, "Switch: 95%% CI [%.4f, %.4f], exact %.4f %s\n", lo, hi, res.Odds.Switch, within(lo, hi, res.Odds.Switch))
	}
	if t.StayRounds > 0 {
		lo, hi := t.ConfidenceInterval95(false)
		fmt.Fprintf(w, "Stay:   95%% CI [%.4f, %.4f], exact %.4f %s\n", lo, hi, res.Odds.Stay, within(lo, hi, res.Odds.Stay))
	}

	fmt.Fprintf(w, "\n=== PRIZE PLACEMENT ===\n")
	for box, c := range res.Prizes.Counts {
		fmt.Fprintf(w, "Box %d: %d (%.1f%%)\n", box, c, float64(c)/float64(max(res.Prizes.Total, 1))*100)
	}
	verdict := "uniform"
	if !res.Prizes.Uniform() {
		verdict = "NOT uniform"
	}
	fmt.Fprintf(w, "Chi-square: %.3f (df=%d, 0.1%% critical %.3f): %s\n",
		res.Prizes.ChiSquare(), len(res.Prizes.Counts)-1, statistics.ChiSquareCritical999(len(res.Prizes.Counts)-1), verdict)
}

func within(lo, hi, v float64) string {
	if v >= lo && v <= hi {
		return "(ok)"
	}
	return "(outside)"
}
