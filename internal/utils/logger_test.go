package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"instrument-service/internal/config"
)

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "service.log")
	logger, err := NewLogger(&config.LoggingConfig{
		Level:   "debug",
		Format:  "json",
		Output:  path,
		MaxSize: 1,
	})
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, CloseLogger(logger))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello"`)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger(&config.LoggingConfig{Level: "chatty", Output: "stdout"})
	assert.Error(t, err)
}

func TestExchangeLogger_ExpiredIsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	el := NewExchangeLogger(zap.New(core), "QUERY", "p?", "id-1")

	el.Success(0, 3, false, true)
	el.Success(1, 7, true, false)
	el.Error(errors.New("port closed"))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "p?", entries[0].ContextMap()["request"])
}

func TestInstrumentLogger_Fields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	il := NewInstrumentLogger(zap.New(core), "laser", "cobolt08nld", "SERIAL")

	il.LogConnection("connect", true, nil)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "laser", fields["instrument"])
	assert.Equal(t, "cobolt08nld", fields["kind"])
}
