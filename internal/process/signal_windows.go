//go:build windows

package process

import (
	"os"
	"strconv"
	"syscall"
)

func (System) Signal(pid int, sig syscall.Signal) error {
	if pid < 0 {
		pid = -pid
	}
	if pid == 0 {
		return ErrProcessNotFound
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return ErrProcessNotFound
	}
	switch sig {
	case syscall.SIGKILL, syscall.SIGTERM, syscall.SIGHUP:
		return proc.Kill()
	case syscall.SIGINT:
		return proc.Signal(os.Interrupt)
	default:
		return syscall.EWINDOWS
	}
}

func (System) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Release()
	return true
}

func (System) Name(int) string {
	return ""
}

func SignalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGKILL:
		return "SIGKILL"
	default:
		return "signal " + strconv.Itoa(int(sig))
	}
}
