//go:build !linux && !windows

package terminal

import "syscall"

func setParentDeathSignal(*syscall.SysProcAttr) {}
