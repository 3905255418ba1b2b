// Package logging builds the zap loggers used by entityscan.
//
// Logs always go to stderr so stdout carries nothing but results.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a log level name: debug, info, warn or error
type Level string

// Style selects the log encoding
type Style string

// Supported log levels and styles
const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"

	StyleTerminal Style = "terminal" // human readable, colored levels
	StyleJSON     Style = "json"     // one JSON object per line
	StyleNoop     Style = "noop"     // discard everything
)

// Config holds logger settings
type Config struct {
	Level Level
	Style Style
}

// DefaultConfig returns warn-level terminal logging
func DefaultConfig() Config {
	return Config{Level: LevelWarn, Style: StyleTerminal}
}

// Validate checks level and style names
func (c Config) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return err
	}
	switch c.Style {
	case "", StyleTerminal, StyleJSON, StyleNoop:
		return nil
	default:
		return fmt.Errorf("unknown log style %q", c.Style)
	}
}

// New builds a logger writing to stderr. Invalid settings fall back to the
// defaults.
func New(cfg Config) *zap.Logger {
	return NewWithSink(cfg, zapcore.Lock(os.Stderr))
}

// NewWithSink builds a logger writing to sink
func NewWithSink(cfg Config, sink zapcore.WriteSyncer) *zap.Logger {
	if cfg.Style == StyleNoop {
		return zap.NewNop()
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = zapcore.WarnLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Style == StyleJSON {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller())
}

func parseLevel(l Level) (zapcore.Level, error) {
	switch Level(strings.ToLower(string(l))) {
	case "":
		return zapcore.WarnLevel, nil
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case LevelInfo:
		return zapcore.InfoLevel, nil
	case LevelWarn, "warning":
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.WarnLevel, fmt.Errorf("unknown log level %q", l)
	}
}
