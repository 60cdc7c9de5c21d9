// Package peer provides ways for the peer ("Rick") to answer the host:
// an interactive console, a seeded automatic player for simulations, and a
// fixed script.
package peer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/lox/fairbox/internal/display"
	"github.com/lox/fairbox/internal/fair"
)

// LineReader is the part of *readline.Instance the console uses.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// NewTerminal opens an interactive line editor on the process terminal.
func NewTerminal(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
}

// Console asks a person for answers, re-prompting on malformed input
// without limit.
type Console struct {
	rl   LineReader
	out  display.Emitter
	host string
	name string
}

// NewConsole returns a console that announces prompts through out as host
// and reads answers typed by name.
func NewConsole(rl LineReader, out display.Emitter, host, name string) *Console {
	return &Console{rl: rl, out: out, host: host, name: name}
}

// RequestInt reads an integer in [min, max).
func (c *Console) RequestInt(ctx context.Context, min, max int, prompt string) (int, error) {
	c.say("%s, %s", c.name, prompt)
	for {
		line, err := c.readLine(ctx)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(strings.TrimSpace(line))
		if err == nil && v >= min && v < max {
			return v, nil
		}
		c.say("Aw jeez, %s, that's not a valid number. Please enter a number between %d and %d.", c.name, min, max-1)
	}
}

// ChooseSlot asks which of n boxes the peer picks.
func (c *Console) ChooseSlot(ctx context.Context, n int, prompt string) (int, error) {
	return c.RequestInt(ctx, 0, n, fmt.Sprintf("%s [0,%d)?", prompt, n))
}

// DecideSwitch asks whether to trade the selected box for other.
func (c *Console) DecideSwitch(ctx context.Context, selected, other int) (bool, error) {
	c.say("You can switch your box (enter 1 for box %d), or stick with your current choice (enter 0 for box %d).", other, selected)
	v, err := c.RequestInt(ctx, 0, 2, "choose your final move (0=stay, 1=switch).")
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// Confirm asks a yes/no question until it gets an answer.
func (c *Console) Confirm(ctx context.Context, prompt string) (bool, error) {
	c.say("%s (y/n)?", prompt)
	for {
		line, err := c.readLine(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

// Close releases the terminal.
func (c *Console) Close() error {
	return c.rl.Close()
}

// readLine waits for one line. Cancelling ctx closes the line reader, which
// makes the console unusable afterwards.
func (c *Console) readLine(ctx context.Context) (string, error) {
	c.rl.SetPrompt(display.PromptStyle.Render(c.name + ": "))

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := c.rl.Readline()
		done <- result{line, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, io.EOF) || errors.Is(r.err, readline.ErrInterrupt) {
				return "", fmt.Errorf("%w: input closed", fair.ErrPeerInputUnavailable)
			}
			return "", fmt.Errorf("%w: %w", fair.ErrPeerInputUnavailable, r.err)
		}
		return r.line, nil
	case <-ctx.Done():
		_ = c.rl.Close()
		return "", fmt.Errorf("%w: %w", fair.ErrPeerInputUnavailable, ctx.Err())
	}
}

func (c *Console) say(format string, args ...any) {
	c.out.Emit(c.host + ": " + fmt.Sprintf(format, args...))
}
