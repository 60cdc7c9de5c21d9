// Package display renders protocol and game output for people.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Emitter receives one human-readable message at a time.
type Emitter interface {
	Emit(text string)
}

// Console writes messages to a terminal, separated by blank lines, with the
// speaker prefix and commitment material highlighted.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole returns a console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Emit writes text as its own paragraph.
func (c *Console) Emit(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n%s\n", render(text))
}

// Title writes a highlighted banner.
func (c *Console) Title(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n%s\n", TitleStyle.Render(text))
}

// Block writes preformatted text such as a table.
func (c *Console) Block(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s\n", text)
}

// Error writes text in the error style.
func (c *Console) Error(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n%s\n", ErrorStyle.Render(text))
}

// Warn writes text in the warning style.
func (c *Console) Warn(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n%s\n", WarningStyle.Render(text))
}

// Note writes dimmed housekeeping text, such as where a file was saved.
func (c *Console) Note(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "\n%s\n", InfoStyle.Render(text))
}

func render(text string) string {
	speaker, body, ok := strings.Cut(text, ": ")
	if !ok || strings.ContainsAny(speaker, " \n") {
		return text
	}
	switch {
	case strings.HasPrefix(body, "HMAC: "), strings.HasPrefix(body, "KEY: "):
		label, value, _ := strings.Cut(body, ": ")
		body = label + ": " + CommitmentStyle.Render(value)
	case strings.HasPrefix(body, "VERIFIED"):
		body = SuccessStyle.Render(body)
	case strings.HasPrefix(body, "MISMATCH"):
		body = ErrorStyle.Render(body)
	}
	return SpeakerStyle.Render(speaker+":") + " " + body
}

// Tee fans each message out to several emitters.
type Tee []Emitter

func (t Tee) Emit(text string) {
	for _, e := range t {
		if e != nil {
			e.Emit(text)
		}
	}
}

// Discard drops everything.
type Discard struct{}

func (Discard) Emit(string) {}

// Buffer collects messages in memory.
type Buffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *Buffer) Emit(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, text)
}

// Lines returns a copy of everything emitted so far.
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}

// Contains reports whether any emitted message contains substr.
func (b *Buffer) Contains(substr string) bool {
	for _, line := range b.Lines() {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

// String joins all messages with newlines.
func (b *Buffer) String() string {
	return strings.Join(b.Lines(), "\n")
}
