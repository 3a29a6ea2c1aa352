package terminal

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound = errors.New("terminal session not found")
	ErrPtyAllocation   = errors.New("pty allocation failed")
	ErrSpawn           = errors.New("child spawn failed")
	ErrShuttingDown    = errors.New("terminal manager is shutting down")
)

// SpawnError reports a synchronous Spawn failure. Kind is ErrPtyAllocation or
// ErrSpawn; Err is the underlying OS error.
type SpawnError struct {
	Kind    error
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Command, e.Err)
}

func (e *SpawnError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
