package logging

import "time"

type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type LogEntry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}

// Category values shared by backend components.
const (
	CategoryPty      = "pty"
	CategoryWatcher  = "watcher"
	CategoryShutdown = "shutdown"
	CategoryProcess  = "process"
)
