package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/lox/fairbox/internal/config"
	"github.com/lox/fairbox/internal/fair"
	"github.com/lox/fairbox/internal/strategy"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Globals

	Play       PlayCmd       `cmd:"" default:"withargs" help:"Play the box game against the host in this terminal"`
	Simulate   SimulateCmd   `cmd:"" help:"Play many automated rounds and compare with the exact odds"`
	Host       HostCmd       `cmd:"" help:"Host a game for a guest connecting over the network"`
	Join       JoinCmd       `cmd:"" help:"Join a hosted game and verify every disclosed draw"`
	Verify     VerifyCmd     `cmd:"" help:"Re-check a saved transcript"`
	Strategies StrategiesCmd `cmd:"" help:"List the built-in removal strategies"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli, options()...)
	if err := ctx.Run(&cli.Globals); err != nil {
		logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "fairbox"})
		logger.Error(err.Error())
		if hint := hintFor(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

func options() []kong.Option {
	return []kong.Option{
		kong.Name("fairbox"),
		kong.Description("Provably fair pick-a-box game built on HMAC commit/reveal"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version":     version,
			"config_file": config.DefaultFile,
		},
	}
}

// hintFor explains how to fix the argument errors people hit most.
func hintFor(err error) string {
	const example = "Example: fairbox play 3 builtin uniform"
	switch {
	case errors.Is(err, fair.ErrInvalidRange):
		return "The game needs at least 3 boxes. " + example
	case errors.Is(err, strategy.ErrStrategyNotFound):
		return "Run 'fairbox strategies' to see the built-in strategies, or pass a .so plugin path. " + example
	case errors.Is(err, strategy.ErrStrategyInvalid):
		return "A plugin must export the strategy name as a strategy.Factory."
	case errors.Is(err, strategy.ErrStrategyLoad):
		return "The strategy source could not be opened. Plugins must be built with -buildmode=plugin against the same fairbox version."
	default:
		return ""
	}
}
