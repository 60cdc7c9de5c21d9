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
	"github.com/lox/fairbox/internal/remote"
	"github.com/lox/fairbox/internal/transcript"
)

// HostCmd plays the host's side of a game against a remote guest.
type HostCmd struct {
	Boxes    int    `arg:"" optional:"" help:"Number of boxes (at least 3)"`
	Source   string `arg:"" optional:"" help:"Strategy source: 'builtin' or a path to a .so plugin"`
	Strategy string `arg:"" optional:"" help:"Strategy name within the source"`

	Addr       string `help:"Address to listen on (defaults to the configured remote address)"`
	Transcript bool   `help:"Save a verifiable transcript when the game ends"`
}

func (c *HostCmd) Run(g *Globals) error {
	a, err := g.setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	boxes, factory, err := a.game(c.Boxes, c.Source, c.Strategy)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		a.cfg.Remote.Address = c.Addr
	}
	ping, err := a.cfg.PingInterval()
	if err != nil {
		return err
	}
	names := a.cfg.Game

	ctx, cancel := shared.SetupSignalHandlerWithLogger(context.Background(), a.logger)
	defer cancel()

	srv, err := remote.Listen(a.cfg.Remote.Address, a.cfg.Remote.Path,
		remote.WithLogger(a.logger), remote.WithPingInterval(ping))
	if err != nil {
		return err
	}
	defer srv.Close()

	screen := display.NewConsole(os.Stdout)
	screen.Title(fmt.Sprintf("Waiting for %s on ws://%s%s", names.PeerName, srv.Addr(), a.cfg.Remote.Path))

	guest, err := srv.Accept(ctx)
	if err != nil {
		return err
	}
	out := display.Tee{screen, guest}

	host := fair.New(names.HostName, guest, out, fair.WithLogger(a.logger), fair.WithOwnedPeer())
	defer host.Close()
	stop := bindClose(ctx, host)
	defer stop()

	strat, err := factory(boxes, host)
	if err != nil {
		return err
	}

	rec := transcript.NewRecorder(names.HostName, strat.Name(), boxes, nil)
	if err := guest.Hello(ctx, remote.HelloData{
		Host:     names.HostName,
		Strategy: strat.Name(),
		Boxes:    boxes,
		Session:  rec.Session(),
	}); err != nil {
		return err
	}

	opts := []game.Option{game.WithLogger(a.logger), game.WithObserver(guest)}
	saveTranscript := c.Transcript || a.cfg.Transcript.Enabled
	if saveTranscript {
		opts = append(opts, game.WithObserver(rec))
	}
	session, err := game.NewSession(game.Config{Boxes: boxes, PeerName: names.PeerName}, host, strat, guest, out, opts...)
	if err != nil {
		return err
	}

	_, runErr := session.Run(ctx)
	if saveTranscript {
		path := transcript.FileName(a.cfg.Transcript.Dir, rec.Session())
		if err := rec.Save(path); err != nil {
			a.logger.Error().Err(err).Msg("Could not save transcript")
		} else {
			screen.Note(fmt.Sprintf("Transcript saved to %s", path))
		}
	}
	switch {
	case runErr == nil:
	case ctx.Err() != nil:
		screen.Warn("Game interrupted")
		fmt.Fprintln(os.Stdout, session.Summary())
		return nil
	case errors.Is(runErr, remote.ErrDisconnected):
		screen.Warn(fmt.Sprintf("%s left the game", names.PeerName))
		fmt.Fprintln(os.Stdout, session.Summary())
		return nil
	}
	return runErr
}
