// Package observability wires structured logging for the CLI and server.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. It defaults to a no-op logger so
// packages can log before Init runs (e.g. in tests).
var Logger = zap.NewNop()

type Config struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is "console" for human output or "json" for machine parsing.
	Format string
}

// Init replaces the process-wide logger according to config.
func Init(cfg Config) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var zc zap.Config
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console":
		zc = zap.NewDevelopmentConfig()
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return fmt.Errorf("unrecognized log format %q", cfg.Format)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	Logger = logger
	return nil
}

// Sync flushes buffered log entries. Safe to call on shutdown paths.
func Sync() {
	_ = Logger.Sync()
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unrecognized log level %q", s)
	}
}
