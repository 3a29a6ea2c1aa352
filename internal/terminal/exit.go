package terminal

import (
	"errors"
	"os/exec"
	"syscall"
)

// exitCodeFromWait maps the result of cmd.Wait to an exit code. A child killed
// by a signal reports 128+signo; nil means the status could not be obtained.
func exitCodeFromWait(err error) *int {
	if err == nil {
		code := 0
		return &code
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		code := 128 + int(status.Signal())
		return &code
	}
	code := exitErr.ExitCode()
	if code < 0 {
		return nil
	}
	return &code
}
