package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func bufLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{
		Level:    level,
		Encoding: EncodingJSON,
		Output:   zapcore.AddSync(&buf),
	})
	return logger, &buf
}

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Encoding = EncodingJSON
	cfg.Output = zapcore.AddSync(&buf)
	logger := NewLogger(cfg)
	logger.Debug("should be suppressed")
	require.Empty(t, buf.String())

	logger.Info("osd booted", "epoch", 3)
	require.Contains(t, buf.String(), "osd booted")
	require.Contains(t, buf.String(), `"epoch":3`)
}

func TestLoggerLevels(t *testing.T) {
	logger, buf := bufLogger(LevelDebug)

	logger.Debug("decoding op", "opcode", "READ")
	require.Contains(t, buf.String(), "decoding op")

	buf.Reset()
	logger.Warn("short buffer")
	require.Contains(t, buf.String(), "short buffer")

	buf.Reset()
	logger.Error("object not found", "identity", "pool=1/name=foo")
	require.Contains(t, buf.String(), "object not found")
}

func TestLoggerWith(t *testing.T) {
	logger, buf := bufLogger(LevelInfo)
	connLogger := logger.With("conn", 7)
	connLogger.Info("dispatching request", "tid", 100)

	output := buf.String()
	require.True(t, strings.Contains(output, `"conn":7`))
	require.True(t, strings.Contains(output, `"tid":100`))
}

func TestGlobalLoggerFunctions(t *testing.T) {
	logger, buf := bufLogger(LevelDebug)
	SetDefault(logger)
	defer SetDefault(NewLogger(nil))

	Info("server started")
	require.Contains(t, buf.String(), "server started")

	buf.Reset()
	Error("dispatch failed", "kind", "NotFound")
	require.Contains(t, buf.String(), "dispatch failed")
}
