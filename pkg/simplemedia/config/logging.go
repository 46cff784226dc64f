package config

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Level parses LOG_LEVEL, falling back to info.
func (c *ServerConfig) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger writes JSON in production and colored text elsewhere.
func (c *ServerConfig) NewLogger(w io.Writer) *slog.Logger {
	if c.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.Level()}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      c.Level(),
		TimeFormat: time.Kitchen,
	}))
}
