package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Debug mode logs everything to a console
// writer; otherwise only warnings and errors are written, as JSON. LOG_LEVEL
// overrides the level either way.
func New(debug bool) zerolog.Logger {
	return newLogger(os.Stderr, debug, os.Getenv("LOG_LEVEL"))
}

func newLogger(out io.Writer, debug bool, levelOverride string) zerolog.Logger {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	if l, ok := parseLevel(levelOverride); ok {
		level = l
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func parseLevel(s string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error", "production", "prod":
		return zerolog.ErrorLevel, true
	}
	return zerolog.NoLevel, false
}
