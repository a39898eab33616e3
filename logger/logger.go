// Package logger builds zerolog loggers from Config.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const (
	FormatPretty   = "pretty"
	FieldComponent = "component"
)

// New creates a logger for component. An unknown level falls back to info.
func New(cfg Config, component string) zerolog.Logger {
	cfg.ApplyDefaults()
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return NewWithWriter(cfg, component, outputWriter(cfg.Output)).Level(level)
}

// NewWithWriter is New writing to w instead of cfg.Output. Level is left to the caller.
func NewWithWriter(cfg Config, component string, w io.Writer) zerolog.Logger {
	format := strings.ToLower(cfg.Format)
	if format == "console" || format == FormatPretty {
		w = zerolog.ConsoleWriter{Out: w, NoColor: cfg.NoColor, TimeFormat: "15:04:05.000"}
	}
	zc := zerolog.New(w).With()
	if component != "" {
		zc = zc.Str(FieldComponent, component)
	}
	if cfg.Timestamp {
		zc = zc.Timestamp()
	}
	if cfg.Caller {
		zc = zc.Caller()
	}
	return zc.Logger()
}

func outputWriter(output string) io.Writer {
	switch strings.ToLower(output) {
	case "", "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return os.Stderr
	}
	return f
}
