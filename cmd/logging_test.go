package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewLoggerLevel(t *testing.T) {
	_, err := newLogger(logConfig{Level: "loud"})
	assert.Error(t, err)

	logger, err := newLogger(logConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestLogOutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fetchcache.log")

	w, err := logOutput(logConfig{File: path, MaxSize: 1})
	require.NoError(t, err)
	rotator, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	t.Cleanup(func() { _ = rotator.Close() })

	_, err = rotator.Write([]byte("{}\n"))
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestLogOutputDefaultsToStderr(t *testing.T) {
	w, err := logOutput(logConfig{})
	require.NoError(t, err)
	assert.Equal(t, stdErr, w)
}
