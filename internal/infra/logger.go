package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages outside infra can accept a logger
// without importing zerolog themselves.
type Logger = zerolog.Logger

// NewLogger builds the service logger. Development gets colored console output
// at debug level; every other environment gets JSON on stdout at info level.
// A non-empty level such as "warn" or "trace" overrides the environment
// default.
func NewLogger(appEnv, level string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return newLogger(out, appEnv, level)
}

func newLogger(out io.Writer, appEnv, level string) zerolog.Logger {
	return zerolog.New(out).
		Level(levelFor(appEnv, level)).
		With().
		Timestamp().
		Str("service", "personastudio").
		Str("env", appEnv).
		Logger()
}

func levelFor(appEnv, level string) zerolog.Level {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && level != "" {
		return lvl
	}
	if appEnv == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// NewCLILogger writes human-readable logs to stderr so stdout stays free for
// command output. Verbose lowers the level to debug.
func NewCLILogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// LoggerOrDiscard returns l, or a logger that drops everything when l is nil.
func LoggerOrDiscard(l *Logger) *Logger {
	if l != nil {
		return l
	}
	discard := zerolog.Nop()
	return &discard
}
