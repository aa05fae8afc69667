package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger in development and a JSON logger elsewhere.
func New(environment string, level ...string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl := zerolog.InfoLevel
	if len(level) > 0 {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level[0])); err == nil && parsed != zerolog.NoLevel {
			lvl = parsed
		}
	}

	if strings.EqualFold(environment, "development") {
		out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
		return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Str("service", "obras").Logger()
}
