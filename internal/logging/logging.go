// Package logging configures the process-wide zerolog logger and hands out
// component-scoped children from it. The long-lived parts of the server that
// log (storage engine, WAL writer, wire server) hold a zerolog.Logger value
// set through SetLogger rather than reaching for a global, but
// cmd/corvusdb-server builds that one root logger here.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level is the accepted set of log verbosity settings.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config controls how the root logger is built.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// New builds a root logger from cfg. Unlike a package-level global, the
// caller owns the returned logger and threads it explicitly into every
// component that logs.
func New(cfg Config) zerolog.Logger {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	base := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.JSONOutput {
		return base.Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: out}).Level(level).With().Timestamp().Logger()
}

// Component returns a child logger tagged with a "component" field, the
// convention every package below threads its logger lines through.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
