package display

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestConsoleEmitPlainProfile(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	var out bytes.Buffer
	c := NewConsole(&out)
	c.Emit("Morty: HMAC: ABCDEF")
	c.Emit("no speaker here")
	c.Title("ROUND 1")
	c.Warn("careful")
	c.Note("saved")

	assert.Equal(t, "\nMorty: HMAC: ABCDEF\n\nno speaker here\n\n ROUND 1 \n\ncareful\n\nsaved\n", out.String())
}

func TestRenderLeavesSentencesAlone(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	assert.Equal(t, "Note that: something", render("Note that: something"))
	assert.Equal(t, "Morty: VERIFIED exchange 1", render("Morty: VERIFIED exchange 1"))
}

func TestTeeAndBuffer(t *testing.T) {
	var a, b Buffer
	tee := Tee{&a, nil, &b, Discard{}}
	tee.Emit("one")
	tee.Emit("two")

	assert.Equal(t, []string{"one", "two"}, a.Lines())
	assert.Equal(t, a.Lines(), b.Lines())
	assert.True(t, a.Contains("tw"))
	assert.False(t, a.Contains("three"))
	assert.Equal(t, "one\ntwo", a.String())
}
