//go:build !windows

package process

import (
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

func (System) Signal(pid int, sig syscall.Signal) error {
	if pid == 0 {
		return ErrProcessNotFound
	}
	err := unix.Kill(pid, sig)
	if errors.Is(err, unix.ESRCH) {
		return ErrProcessNotFound
	}
	return err
}

func (System) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

// Name returns the command name reported by ps, or "" when unknown.
func (System) Name(pid int) string {
	if pid <= 0 {
		return ""
	}
	output, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "comm=").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// SignalName renders sig as SIGHUP, SIGTERM, etc.
func SignalName(sig syscall.Signal) string {
	if name := unix.SignalName(sig); name != "" {
		return name
	}
	return "signal " + strconv.Itoa(int(sig))
}
