package shared

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// SetupLogger returns a zerolog logger writing pretty console lines, or JSON
// when structured is set, to w.
func SetupLogger(w io.Writer, level zerolog.Level, structured bool) zerolog.Logger {
	if structured {
		zerolog.TimeFieldFormat = time.RFC3339Nano
	} else {
		w = zerolog.ConsoleWriter{Out: w, NoColor: w != os.Stderr, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// OpenLogFile opens path for appending, creating parent directories. Interactive
// commands log here so structured output does not interleave with prompts.
func OpenLogFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
