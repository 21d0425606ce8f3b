package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/runboard/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"WARNING", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		level, err := ParseLogLevel(tt.input)
		require.NoError(t, err, "ParseLogLevel(%q)", tt.input)
		assert.Equal(t, tt.expected, level, "ParseLogLevel(%q)", tt.input)
	}

	_, err := ParseLogLevel("verbose")
	assert.ErrorIs(t, err, ErrUnknownLogLevel)
}

func TestNewLoggerWithoutFileIsNop(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "debug", Encoding: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewLoggerWritesFile(t *testing.T) {
	for _, encoding := range []string{"console", "json"} {
		t.Run(encoding, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "runboard.log")
			logger, err := NewLogger(config.LoggingConfig{Level: "warn", Encoding: encoding, File: path})
			require.NoError(t, err)

			logger.Info("hidden")
			logger.Warn("visible")
			_ = logger.Sync()

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Contains(t, string(data), "visible")
			assert.NotContains(t, string(data), "hidden")
		})
	}
}

func TestNewLoggerRejectsBadSettings(t *testing.T) {
	_, err := NewStderrLogger(config.LoggingConfig{Level: "loud"})
	assert.ErrorIs(t, err, ErrUnknownLogLevel)

	_, err = NewStderrLogger(config.LoggingConfig{Level: "info", Encoding: "xml"})
	assert.Error(t, err)
}
