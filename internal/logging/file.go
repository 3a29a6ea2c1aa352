package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig controls rotating file output.
type FileConfig struct {
	// Dir is the directory holding deckhand.log; empty disables file output.
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewOutput returns stdout, optionally teed into a rotating log file.
// The returned closer must be called on shutdown.
func NewOutput(stdout io.Writer, cfg FileConfig) (io.Writer, io.Closer, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return stdout, nopCloser{}, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 10
	}
	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "deckhand.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	return io.MultiWriter(stdout, rotating), rotating, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
