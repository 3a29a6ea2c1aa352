package logging

import (
	"sync"

	"deckhand/internal/buffer"
)

// LogBuffer retains the newest log entries in memory so callers can inspect
// recent activity without a log file.
type LogBuffer struct {
	mu      sync.Mutex
	entries *buffer.Ring[LogEntry]
}

func NewLogBuffer(size int) *LogBuffer {
	return &LogBuffer{entries: buffer.NewRing[LogEntry](size)}
}

func (b *LogBuffer) Add(entry LogEntry) {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.entries.Add(entry)
	b.mu.Unlock()
}

func (b *LogBuffer) List() []LogEntry {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.entries.List()
}

// Recent returns up to n of the newest entries at or above level, oldest
// first.
func (b *LogBuffer) Recent(n int, level Level) []LogEntry {
	if b == nil || n <= 0 {
		return nil
	}
	b.mu.Lock()
	entries := b.entries.List()
	b.mu.Unlock()

	matched := make([]LogEntry, 0, n)
	for i := len(entries) - 1; i >= 0 && len(matched) < n; i-- {
		if levelRank(entries[i].Level) >= levelRank(level) {
			matched = append(matched, entries[i])
		}
	}
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}
