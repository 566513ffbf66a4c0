package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the JSON logger. When the log file cannot be prepared the
// logger falls back to stderr and reports why.
func newLogger(cfg logConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	output, outErr := logOutput(cfg)

	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	if outErr != nil {
		logger.Warn("logger fallback", "path", cfg.File, "error", outErr)
	}

	return logger, nil
}

// logOutput keeps stdout free for fetch results, so without a file the logs
// go to stderr.
func logOutput(cfg logConfig) (io.Writer, error) {
	if cfg.File == "" {
		return stdErr, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return stdErr, fmt.Errorf("create log dir: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}, nil
}
