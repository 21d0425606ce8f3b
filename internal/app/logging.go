package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/runboard/internal/config"
)

// ParseLogLevel parses a level name. Names are case-insensitive and
// "warning" is accepted for warn.
func ParseLogLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("%w: %q", ErrUnknownLogLevel, s)
	}
}

// NewLogger builds the dashboard logger from the logging settings.
//
// The dashboard owns the terminal, so without a log file the returned
// logger discards everything.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	if cfg.File == "" {
		return zap.NewNop(), nil
	}
	return buildLogger(cfg, []string{cfg.File})
}

// NewStderrLogger builds a logger writing to stderr, for headless runs.
func NewStderrLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	return buildLogger(cfg, []string{"stderr"})
}

func buildLogger(cfg config.LoggingConfig, outputs []string) (*zap.Logger, error) {
	level, err := ParseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	switch cfg.Encoding {
	case "json":
		zc = zap.NewProductionConfig()
	case "console", "":
		zc = zap.NewDevelopmentConfig()
		zc.Development = false
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log encoding %q", cfg.Encoding)
	}

	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.OutputPaths = outputs
	zc.ErrorOutputPaths = outputs
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger.Named("runboard"), nil
}
