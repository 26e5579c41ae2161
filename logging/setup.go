// Package logging builds the slog handlers shared by the binaries.
package logging

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format names accepted by -log-format.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"
)

// Options is the logging configuration a binary exposes through flags.
type Options struct {
	Level     string
	Format    string
	AddSource bool
}

// RegisterFlags binds -log-level and -log-format, defaulting to LOG_LEVEL and
// LOG_FORMAT from the environment.
func (o *Options) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&o.Level, "log-level", envOr("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fs.StringVar(&o.Format, "log-format", envOr("LOG_FORMAT", FormatPretty), "Log format: pretty, json, text")
	fs.BoolVar(&o.AddSource, "log-source", false, "Include file:line in log records")
}

func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}

// NewHandler returns a handler writing to w in the given format.
func NewHandler(w io.Writer, o Options) (slog.Handler, error) {
	level, err := ParseLevel(o.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: o.AddSource}
	switch strings.ToLower(o.Format) {
	case "", FormatPretty:
		return NewPrettyHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	case FormatText:
		return slog.NewTextHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", o.Format)
	}
}

// Setup installs a stderr logger as the slog default and returns it.
func Setup(o Options) (*slog.Logger, error) {
	h, err := NewHandler(os.Stderr, o)
	if err != nil {
		return nil, err
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
