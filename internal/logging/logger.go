package logging

import (
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultBufferSize = 1000

var levelRanks = map[Level]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// Logger writes logfmt lines and keeps every entry in a LogBuffer. A nil
// *Logger discards everything, so components never need to check for one.
type Logger struct {
	buffer   *LogBuffer
	out      *lineWriter
	minLevel Level
	fields   map[string]string
}

// lineWriter serializes whole lines onto a shared writer.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lineWriter) writeLine(line string) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, _ = io.WriteString(lw.w, line)
}

func NewLoggerWithOutput(buffer *LogBuffer, minLevel Level, output io.Writer) *Logger {
	if buffer == nil {
		buffer = NewLogBuffer(DefaultBufferSize)
	}
	if output == nil {
		output = io.Discard
	}
	if _, ok := levelRanks[minLevel]; !ok {
		minLevel = LevelInfo
	}
	return &Logger{
		buffer:   buffer,
		out:      &lineWriter{w: output},
		minLevel: minLevel,
	}
}

// Discard returns a logger that keeps entries in memory only.
func Discard() *Logger {
	return NewLoggerWithOutput(nil, LevelInfo, nil)
}

func (l *Logger) Buffer() *LogBuffer {
	if l == nil {
		return nil
	}
	return l.buffer
}

// With returns a logger that adds fields to every entry.
func (l *Logger) With(fields map[string]string) *Logger {
	if l == nil {
		return nil
	}
	child := *l
	child.fields = mergeFields(l.fields, fields)
	return &child
}

// ForCategory tags every entry with the backend category fields.
func (l *Logger) ForCategory(category string) *Logger {
	return l.With(map[string]string{
		"deckhand.category": category,
		"deckhand.source":   "backend",
	})
}

func (l *Logger) Debug(message string, fields map[string]string) {
	l.log(LevelDebug, message, fields)
}

func (l *Logger) Info(message string, fields map[string]string) {
	l.log(LevelInfo, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]string) {
	l.log(LevelWarning, message, fields)
}

func (l *Logger) Error(message string, fields map[string]string) {
	l.log(LevelError, message, fields)
}

func (l *Logger) Enabled(level Level) bool {
	return l != nil && levelRank(level) >= levelRank(l.minLevel)
}

func (l *Logger) log(level Level, message string, fields map[string]string) {
	if !l.Enabled(level) {
		return
	}
	entry := LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Context:   mergeFields(l.fields, fields),
	}
	l.buffer.Add(entry)
	l.out.writeLine(formatEntry(entry))
}

func levelRank(level Level) int {
	if rank, ok := levelRanks[level]; ok {
		return rank
	}
	return levelRanks[LevelInfo]
}

func ParseLevel(value string) (Level, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "warn" {
		return LevelWarning, true
	}
	if _, ok := levelRanks[Level(value)]; ok {
		return Level(value), true
	}
	return "", false
}

// mergeFields returns base overlaid with extra, or nil when both are empty.
func mergeFields(base, extra map[string]string) map[string]string {
	if len(base)+len(extra) == 0 {
		return nil
	}
	merged := make(map[string]string, len(base)+len(extra))
	maps.Copy(merged, base)
	maps.Copy(merged, extra)
	return merged
}

// formatEntry renders one logfmt line with context keys in sorted order.
func formatEntry(entry LogEntry) string {
	var b strings.Builder
	b.WriteString("ts=")
	b.WriteString(entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"))
	b.WriteString(" level=")
	b.WriteString(string(entry.Level))
	b.WriteString(" msg=")
	b.WriteString(strconv.Quote(entry.Message))
	for _, key := range slices.Sorted(maps.Keys(entry.Context)) {
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(entry.Context[key]))
	}
	b.WriteByte('\n')
	return b.String()
}
