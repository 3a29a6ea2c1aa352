package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerWritesToBuffer(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelInfo, io.Discard)

	logger.Info("session spawned", map[string]string{"pty_id": "1"})

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != LevelInfo {
		t.Fatalf("expected info level, got %q", entry.Level)
	}
	if entry.Context["pty_id"] != "1" {
		t.Fatalf("expected context pty_id=1, got %v", entry.Context)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	buffer := NewLogBuffer(10)
	logger := NewLoggerWithOutput(buffer, LevelWarning, io.Discard)

	logger.Debug("debug", nil)
	logger.Info("info", nil)
	logger.Warn("warn", nil)

	entries := buffer.List()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Level != LevelWarning {
		t.Fatalf("expected warning level, got %q", entries[0].Level)
	}
}

func TestLoggerForCategoryAddsBaseFields(t *testing.T) {
	var out bytes.Buffer
	logger := NewLoggerWithOutput(NewLogBuffer(10), LevelInfo, &out).ForCategory(CategoryWatcher)

	logger.Info("watch started", map[string]string{"key": "wt-1"})

	line := out.String()
	for _, want := range []string{`deckhand.category="watcher"`, `deckhand.source="backend"`, `key="wt-1"`, `msg="watch started"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored", nil)
	if logger.With(map[string]string{"a": "b"}) != nil {
		t.Fatalf("expected nil logger from With")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warn":    LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
	}
	for input, want := range tests {
		got, ok := ParseLevel(input)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %q, %v", input, got, ok)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("expected unknown level to fail")
	}
}

func TestNewOutputWritesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer
	output, closer, err := NewOutput(&stdout, FileConfig{Dir: dir})
	if err != nil {
		t.Fatalf("new output: %v", err)
	}
	logger := NewLoggerWithOutput(nil, LevelInfo, output)
	logger.Info("to file", nil)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "deckhand.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `msg="to file"`) {
		t.Fatalf("expected entry in log file, got %q", data)
	}
	if !strings.Contains(stdout.String(), `msg="to file"`) {
		t.Fatalf("expected entry on stdout, got %q", stdout.String())
	}
}

func TestNewOutputWithoutDirUsesStdout(t *testing.T) {
	var stdout bytes.Buffer
	output, closer, err := NewOutput(&stdout, FileConfig{})
	if err != nil {
		t.Fatalf("new output: %v", err)
	}
	defer closer.Close()
	if output != io.Writer(&stdout) {
		t.Fatalf("expected stdout writer to be returned unchanged")
	}
}

func TestLoggerWritesOneSortedLinePerEntry(t *testing.T) {
	var out bytes.Buffer
	logger := NewLoggerWithOutput(nil, LevelDebug, &out).With(map[string]string{"b": "2"})

	logger.Debug("first", map[string]string{"a": "1"})
	logger.Error("second", nil)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out.String())
	}
	if !strings.HasPrefix(lines[0], "ts=") {
		t.Fatalf("expected timestamp first, got %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], `level=debug msg="first" a="1" b="2"`) {
		t.Fatalf("unexpected line %q", lines[0])
	}
	if !strings.Contains(lines[1], `level=error msg="second" b="2"`) {
		t.Fatalf("unexpected line %q", lines[1])
	}
}
