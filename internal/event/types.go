package event

import "time"

// Names of events emitted by the supervisor and the watchers.
const (
	NamePtyOutput        = "pty-output"
	NamePtyReady         = "pty-ready"
	NamePtyExit          = "pty-exit"
	NameFilesChanged     = "files-changed"
	NameWorktreeRemoved  = "worktree-removed"
	NameMergeComplete    = "merge-complete"
	NameRebaseComplete   = "rebase-complete"
	NameConfigChanged    = "config-changed"
	NameShutdownProgress = "shutdown-progress"
)

// Shutdown phases reported through NameShutdownProgress.
const (
	PhaseStarting  = "starting"
	PhaseSignaling = "signaling"
	PhaseComplete  = "complete"
)

// Sink is the single emission point for every event. Implementations must be
// safe for concurrent use.
type Sink interface {
	Emit(name string, payload any)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name string, payload any)

func (f SinkFunc) Emit(name string, payload any) {
	if f != nil {
		f(name, payload)
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(string, any) {})

// Multi fans an emission out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	filtered := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return SinkFunc(func(name string, payload any) {
		for _, sink := range filtered {
			sink.Emit(name, payload)
		}
	})
}

// Envelope pairs an event name with its payload.
type Envelope struct {
	Name       string    `json:"event"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"timestamp"`
}

func NewEnvelope(name string, payload any) Envelope {
	return Envelope{Name: name, Payload: payload, OccurredAt: time.Now().UTC()}
}

func (e Envelope) Type() string {
	return e.Name
}

// Field names follow the established wire format, which is not uniformly
// camelCase: pty-output, files-changed, worktree-removed and
// shutdown-progress use snake_case keys.

type PtyOutput struct {
	PtyID string `json:"pty_id"`
	Data  string `json:"data"`
}

type PtyReady struct {
	PtyID      string `json:"ptyId"`
	WorktreeID string `json:"worktreeId"`
}

// PtyExit carries a nil ExitCode when the child could not be reaped.
type PtyExit struct {
	PtyID      string `json:"ptyId"`
	WorktreeID string `json:"worktreeId"`
	Command    string `json:"command"`
	ExitCode   *int   `json:"exitCode"`
}

// ChangedFile carries line counts only when git reported a change.
type ChangedFile struct {
	Path       string `json:"path"`
	Status     string `json:"status"`
	Insertions *int   `json:"insertions,omitempty"`
	Deletions  *int   `json:"deletions,omitempty"`
}

type FilesChanged struct {
	WorktreePath string        `json:"worktree_path"`
	Files        []ChangedFile `json:"files"`
}

type WorktreeRemoved struct {
	WorktreePath string `json:"worktree_path"`
}

// StateComplete is the payload of merge-complete and rebase-complete.
type StateComplete struct {
	WorktreeID   string `json:"worktreeId"`
	WorktreePath string `json:"worktreePath"`
}

// ConfigChanged carries a nil ProjectPath for the global config watcher.
type ConfigChanged struct {
	ProjectPath *string `json:"projectPath"`
}

type ShutdownProgress struct {
	Phase       string `json:"phase"`
	Message     string `json:"message"`
	ProcessName string `json:"process_name,omitempty"`
	Pid         int    `json:"pid,omitempty"`
	Signal      string `json:"signal,omitempty"`
}
