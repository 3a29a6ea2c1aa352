package terminal

import "os/exec"

// Pty is the master side of a pseudo-terminal.
type Pty interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	Resize(cols, rows uint16) error
}

// StartSpec describes a child to attach to a new pseudo-terminal.
type StartSpec struct {
	Argv []string
	Dir  string
	Env  []string
	Cols uint16
	Rows uint16
}

// PtyFactory allocates a pseudo-terminal and starts the child on its slave
// end. Failures are returned as *SpawnError.
type PtyFactory interface {
	Start(spec StartSpec) (Pty, *exec.Cmd, error)
}

type defaultPtyFactory struct{}

func (defaultPtyFactory) Start(spec StartSpec) (Pty, *exec.Cmd, error) {
	return startPty(spec)
}

func DefaultPtyFactory() PtyFactory {
	return defaultPtyFactory{}
}
