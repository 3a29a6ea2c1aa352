//go:build linux

package terminal

import "syscall"

// setParentDeathSignal hangs up the child if the supervisor dies without
// running the shutdown cascade, as closing a real terminal would.
func setParentDeathSignal(attr *syscall.SysProcAttr) {
	if attr != nil {
		attr.Pdeathsig = syscall.SIGHUP
	}
}
