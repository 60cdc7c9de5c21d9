package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
	"github.com/lox/fairbox/cmd/fairbox/shared"
	"github.com/lox/fairbox/internal/config"
	"github.com/lox/fairbox/internal/fair"
	"github.com/lox/fairbox/internal/strategy"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
)

// Globals are flags shared by every command.
type Globals struct {
	Config   string           `help:"Path to the HCL configuration file" default:"${config_file}" type:"path"`
	Debug    bool             `help:"Enable debug logging"`
	LogFile  string           `help:"Write logs to this file (interactive commands default to the configured log file)"`
	JSONLogs bool             `name:"json-logs" help:"Write logs as JSON"`
	NoColor  bool             `help:"Disable colors and styles"`
	Version  kong.VersionFlag `short:"v" help:"Show version"`
}

// app is what a command needs once the globals are resolved.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	closeFn func() error
}

func (a *app) Close() error {
	if a.closeFn != nil {
		return a.closeFn()
	}
	return nil
}

// setup loads configuration and builds the logger. Interactive commands log
// to a file so the game text stays readable.
func (g *Globals) setup(interactive bool) (*app, error) {
	if g.NoColor || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if g.Debug {
		cfg.Log.Level = "debug"
	}
	if g.JSONLogs {
		cfg.Log.JSON = true
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log: invalid level %q", cfg.Log.Level)
	}

	a := &app{cfg: cfg}
	var w io.Writer = os.Stderr
	path := g.LogFile
	if path == "" && interactive {
		path = cfg.Log.File
	}
	if path != "" {
		f, err := shared.OpenLogFile(path)
		if err != nil {
			return nil, err
		}
		w = f
		a.closeFn = f.Close
	}
	a.logger = shared.SetupLogger(w, level, cfg.Log.JSON)
	return a, nil
}

// game resolves the positional overrides shared by play, host and simulate.
func (a *app) game(boxes int, source, name string) (int, strategy.Factory, error) {
	g := a.cfg.Game
	if boxes != 0 {
		g.Boxes = boxes
	}
	if source != "" {
		g.Source = source
	}
	if name != "" {
		g.Strategy = name
	}
	if g.Boxes < strategy.MinBoxes {
		return 0, nil, fmt.Errorf("%w: need at least %d boxes, got %d", fair.ErrInvalidRange, strategy.MinBoxes, g.Boxes)
	}
	if err := a.cfg.Validate(); err != nil {
		return 0, nil, err
	}
	factory, err := strategy.DefaultRegistry().Resolve(g.Source, g.Strategy)
	if err != nil {
		return 0, nil, err
	}
	return g.Boxes, factory, nil
}

// bindClose closes c when ctx is cancelled, unblocking any pending input.
func bindClose(ctx context.Context, c io.Closer) func() bool {
	return context.AfterFunc(ctx, func() { _ = c.Close() })
}
