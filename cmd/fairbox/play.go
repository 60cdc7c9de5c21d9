package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/lox/fairbox/cmd/fairbox/shared"
	"github.com/lox/fairbox/internal/display"
	"github.com/lox/fairbox/internal/fair"
	"github.com/lox/fairbox/internal/game"
	"github.com/lox/fairbox/internal/peer"
	"github.com/lox/fairbox/internal/transcript"
)

// PlayCmd plays an interactive game in the local terminal.
type PlayCmd struct {
	Boxes    int    `arg:"" optional:"" help:"Number of boxes (at least 3)"`
	Source   string `arg:"" optional:"" help:"Strategy source: 'builtin' or a path to a .so plugin"`
	Strategy string `arg:"" optional:"" help:"Strategy name within the source"`

	Transcript bool   `help:"Save a verifiable transcript when the game ends"`
	History    string `help:"Readline history file" type:"path"`
}

func (c *PlayCmd) Run(g *Globals) error {
	a, err := g.setup(true)
	if err != nil {
		return err
	}
	defer a.Close()

	boxes, factory, err := a.game(c.Boxes, c.Source, c.Strategy)
	if err != nil {
		return err
	}
	names := a.cfg.Game

	rl, err := peer.NewTerminal(c.History)
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	screen := display.NewConsole(os.Stdout)
	console := peer.NewConsole(rl, screen, names.HostName, names.PeerName)

	ctx, cancel := shared.SetupSignalHandlerWithLogger(context.Background(), a.logger)
	defer cancel()

	host := fair.New(names.HostName, console, screen, fair.WithLogger(a.logger), fair.WithOwnedPeer())
	defer host.Close()
	stop := bindClose(ctx, host)
	defer stop()

	strat, err := factory(boxes, host)
	if err != nil {
		return err
	}

	var opts []game.Option
	opts = append(opts, game.WithLogger(a.logger))
	var rec *transcript.Recorder
	if c.Transcript || a.cfg.Transcript.Enabled {
		rec = transcript.NewRecorder(names.HostName, strat.Name(), boxes, nil)
		opts = append(opts, game.WithObserver(rec))
	}

	session, err := game.NewSession(game.Config{Boxes: boxes, PeerName: names.PeerName}, host, strat, console, screen, opts...)
	if err != nil {
		return err
	}

	screen.Title(fmt.Sprintf("%s hides a portal gun in one of %d boxes", names.HostName, boxes))
	a.logger.Info().Int("boxes", boxes).Str("strategy", strat.Name()).Msg("Game started")

	_, runErr := session.Run(ctx)
	if rec != nil {
		path := transcript.FileName(a.cfg.Transcript.Dir, rec.Session())
		if err := rec.Save(path); err != nil {
			screen.Error(fmt.Sprintf("Could not save transcript: %v", err))
		} else {
			screen.Note(fmt.Sprintf("Transcript saved to %s", path))
		}
	}

	// Leaving with Ctrl-C or closing stdin ends the game; it is not a failure.
	if errors.Is(runErr, fair.ErrPeerInputUnavailable) {
		a.logger.Info().Err(runErr).Msg("Input closed, game over")
		fmt.Fprintln(os.Stdout)
		fmt.Fprintln(os.Stdout, session.Summary())
		return nil
	}
	return runErr
}
