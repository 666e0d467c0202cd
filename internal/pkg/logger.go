package pkg

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger. Format is "console" for human-readable
// output or "json" for machine ingestion; level accepts the usual zerolog
// level names (case-insensitive) and falls back to info.
func NewLogger(level, format string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// NopLogger returns a logger that discards everything. Used by tests and by
// components that accept an optional logger.
func NopLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}
