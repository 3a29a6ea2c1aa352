//go:build !windows

package terminal

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

type filePty struct {
	file *os.File
}

func (p *filePty) Read(data []byte) (int, error) {
	return p.file.Read(data)
}

func (p *filePty) Write(data []byte) (int, error) {
	return p.file.Write(data)
}

func (p *filePty) Close() error {
	return p.file.Close()
}

func (p *filePty) Resize(cols, rows uint16) error {
	return pty.Setsize(p.file, &pty.Winsize{Cols: cols, Rows: rows})
}

func startPty(spec StartSpec) (Pty, *exec.Cmd, error) {
	if len(spec.Argv) == 0 {
		return nil, nil, &SpawnError{Kind: ErrSpawn, Err: errors.New("empty command")}
	}
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, nil, &SpawnError{Kind: ErrPtyAllocation, Command: spec.Argv[0], Err: err}
	}
	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: spec.Cols, Rows: spec.Rows}); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return nil, nil, &SpawnError{Kind: ErrPtyAllocation, Command: spec.Argv[0], Err: err}
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	// The child leads a new session with the slave as its controlling terminal.
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
	}
	setParentDeathSignal(cmd.SysProcAttr)
	if err := cmd.Start(); err != nil {
		_ = ptmx.Close()
		_ = tty.Close()
		return nil, nil, &SpawnError{Kind: ErrSpawn, Command: spec.Argv[0], Err: err}
	}
	// Only the child keeps the slave open, so the master sees EIO once it exits.
	_ = tty.Close()

	return &filePty{file: ptmx}, cmd, nil
}
