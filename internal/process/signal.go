package process

import (
	"errors"
	"syscall"
)

var ErrProcessNotFound = errors.New("process not running")

// Signaler delivers signals and answers liveness queries. Negative pids
// address a process group.
type Signaler interface {
	Signal(pid int, sig syscall.Signal) error
	Alive(pid int) bool
}

// Inspector adds process name lookup to Signaler.
type Inspector interface {
	Signaler
	Name(pid int) string
}

// System is the Inspector backed by the running operating system.
type System struct{}

var _ Inspector = System{}
