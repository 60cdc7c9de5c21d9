package main

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/lox/fairbox/cmd/fairbox/shared"
	"github.com/lox/fairbox/internal/peer"
	"github.com/lox/fairbox/internal/simulator"
)

// SimulateCmd plays automated rounds to compare observed and exact odds.
type SimulateCmd struct {
	Rounds       int    `help:"Number of rounds to play" default:"10000"`
	Workers      int    `help:"Parallel workers (0 means one per CPU)" default:"0"`
	Boxes        int    `help:"Number of boxes (defaults to the configured value)"`
	Strategy     string `help:"Strategy name"`
	Source       string `help:"Strategy source: 'builtin' or a path to a .so plugin"`
	Policy       string `help:"Automated player's choice: switch, stay or random" default:"random" enum:"switch,stay,random"`
	Seed         *int64 `help:"Seed for the automated player (random when unset)"`
	Reproducible bool   `help:"Derive the host's draws from the seed too, for exact replays"`
}

func (c *SimulateCmd) Run(g *Globals) error {
	a, err := g.setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	boxes, factory, err := a.game(c.Boxes, c.Source, c.Strategy)
	if err != nil {
		return err
	}
	policy, err := peer.ParsePolicy(c.Policy)
	if err != nil {
		return err
	}

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
	}
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := shared.SetupSignalHandlerWithLogger(context.Background(), a.logger)
	defer cancel()

	a.logger.Info().
		Int("rounds", c.Rounds).
		Int("workers", workers).
		Int("boxes", boxes).
		Int64("seed", seed).
		Str("policy", string(policy)).
		Msg("Starting simulation")

	sim := simulator.New(simulator.Config{
		Rounds:       c.Rounds,
		Workers:      workers,
		Boxes:        boxes,
		Seed:         seed,
		Policy:       policy,
		Strategy:     factory,
		Reproducible: c.Reproducible,
		Logger:       a.logger,
	})
	res, err := sim.Run(ctx)
	if err != nil {
		return err
	}
	simulator.PrintSummary(os.Stdout, res)
	return nil
}
