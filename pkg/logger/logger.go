// Package logger builds the zerolog root logger every component
// receives at startup. Output is JSON on stdout; dev mode switches to
// the human-readable console writer.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config controls log level and output format.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Pretty bool   // console writer instead of JSON
}

// New builds the root logger and sets the global level. An unknown
// level string falls back to info instead of failing startup.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).With().Timestamp().Caller().Logger()
}

// SetGlobalLogger replaces the zerolog package-level logger so code
// logging through log.Info() shares the same sink.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
