package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/lox/fairbox/cmd/fairbox/shared"
	"github.com/lox/fairbox/internal/display"
	"github.com/lox/fairbox/internal/peer"
	"github.com/lox/fairbox/internal/remote"
)

// JoinCmd connects to a hosted game as the guest and checks every reveal.
type JoinCmd struct {
	URL     string `arg:"" optional:"" help:"Host URL (defaults to the configured remote address)"`
	Name    string `help:"Name to play under (defaults to the configured peer name)"`
	History string `help:"Readline history file" type:"path"`
}

func (c *JoinCmd) Run(g *Globals) error {
	a, err := g.setup(true)
	if err != nil {
		return err
	}
	defer a.Close()

	target, err := c.target(a.cfg.Remote.Address, a.cfg.Remote.Path)
	if err != nil {
		return err
	}
	name := a.cfg.Game.PeerName
	if c.Name != "" {
		name = c.Name
	}

	rl, err := peer.NewTerminal(c.History)
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	screen := display.NewConsole(os.Stdout)
	console := peer.NewConsole(rl, screen, a.cfg.Game.HostName, name)
	defer console.Close()

	ctx, cancel := shared.SetupSignalHandlerWithLogger(context.Background(), a.logger)
	defer cancel()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "guest"})
	if g.Debug {
		logger.SetLevel(log.DebugLevel)
	}

	guest, err := remote.Dial(ctx, target, console, screen, logger)
	if err != nil {
		return err
	}
	defer guest.Close()

	runErr := guest.Run(ctx)
	verified, mismatched := guest.Report()
	roundsOK, roundsBad := guest.RoundReport()
	screen.Title("VERIFICATION")
	screen.Emit(fmt.Sprintf("Verifier: %d exchanges VERIFIED, %d MISMATCH", verified, mismatched))
	screen.Emit(fmt.Sprintf("Verifier: %d rounds VERIFIED, %d MISMATCH", roundsOK, roundsBad))
	if runErr != nil && ctx.Err() == nil {
		return runErr
	}
	if mismatched > 0 || roundsBad > 0 {
		return fmt.Errorf("verification failed: %d of %d exchanges and %d of %d rounds did not match",
			mismatched, verified+mismatched, roundsBad, roundsOK+roundsBad)
	}
	return nil
}

// target returns the websocket URL to dial, filling in the configured path
// when only a host is given.
func (c *JoinCmd) target(addr, path string) (string, error) {
	raw := c.URL
	if raw == "" {
		raw = addr
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid host URL %q: %w", raw, err)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = path
	}
	return u.String(), nil
}
