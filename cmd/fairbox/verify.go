package main

import (
	"fmt"
	"os"

	"github.com/lox/fairbox/internal/display"
	"github.com/lox/fairbox/internal/transcript"
)

// VerifyCmd re-checks every exchange and round in saved transcripts.
type VerifyCmd struct {
	Files []string `arg:"" help:"Transcript files to verify"`
}

func (c *VerifyCmd) Run(g *Globals) error {
	a, err := g.setup(false)
	if err != nil {
		return err
	}
	defer a.Close()

	screen := display.NewConsole(os.Stdout)
	failed := 0
	for _, path := range c.Files {
		t, err := transcript.Load(path)
		if err != nil {
			return err
		}
		screen.Title(fmt.Sprintf("%s (session %s, %d rounds, %d exchanges)", path, t.Session, len(t.Rounds), len(t.Exchanges)))
		problems := transcript.Verify(t)
		for _, p := range problems {
			screen.Error("MISMATCH: " + p.Error())
		}
		if len(problems) == 0 {
			screen.Emit("Verifier: VERIFIED all exchanges and rounds")
		} else {
			failed++
		}
		a.logger.Debug().Str("file", path).Int("problems", len(problems)).Msg("Transcript checked")
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d transcripts failed verification", failed, len(c.Files))
	}
	return nil
}
