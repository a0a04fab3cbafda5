package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog logger writing to w.
// level is parsed as a zerolog level and falls back to info when it cannot be
// parsed. format "json" writes one JSON object per event; anything else uses
// the human-readable console writer.
func NewLogger(level, format string, w io.Writer) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
