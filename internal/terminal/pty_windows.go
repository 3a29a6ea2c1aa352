//go:build windows

package terminal

import (
	"errors"
	"os/exec"
)

var errConPTYUnavailable = errors.New("windows PTY unavailable; ConPTY support is required (Windows 10+)")

func startPty(spec StartSpec) (Pty, *exec.Cmd, error) {
	command := ""
	if len(spec.Argv) > 0 {
		command = spec.Argv[0]
	}
	return nil, nil, &SpawnError{Kind: ErrPtyAllocation, Command: command, Err: errConPTYUnavailable}
}
