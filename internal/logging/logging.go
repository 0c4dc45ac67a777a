// Package logging builds the zerolog logger shared by the CLI, the
// dashboard and the propagation listeners.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/stageboard/stageboard/internal/config"
)

// New returns a logger writing to out at the configured level. The console
// format is human readable; json emits one object per line.
func New(cfg config.LogConfig, out io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("logging: level %q: %w", cfg.Level, err)
	}
	if cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	w := out
	if cfg.Format != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		With().
		Timestamp().
		Logger().
		Level(level), nil
}
