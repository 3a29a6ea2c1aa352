package terminal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"deckhand/internal/event"
	"deckhand/internal/logging"
	"deckhand/internal/process"
)

// treeDiscoveryLimit bounds concurrent process-tree lookups during shutdown.
const treeDiscoveryLimit = 8

type KillMode int

const (
	// Interrupt sends SIGINT to the session's process group.
	Interrupt KillMode = iota
	// Terminate sends SIGTERM to the whole tree and leaves cleanup to the
	// pump once the child actually exits.
	Terminate
	// ForceKill sends SIGKILL to the whole tree and drops the session at once.
	ForceKill
)

func (k KillMode) String() string {
	switch k {
	case Interrupt:
		return "interrupt"
	case Terminate:
		return "terminate"
	case ForceKill:
		return "force-kill"
	default:
		return "kill-mode(" + strconv.Itoa(int(k)) + ")"
	}
}

func ParseKillMode(value string) (KillMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "interrupt", "int", "sigint":
		return Interrupt, nil
	case "terminate", "term", "sigterm":
		return Terminate, nil
	case "force-kill", "force", "kill", "sigkill":
		return ForceKill, nil
	default:
		return 0, fmt.Errorf("unknown kill mode %q", value)
	}
}

// Kill signals the session's process according to mode. Killing an unknown
// session is a no-op. Delivery failures are logged, never returned, because
// the process may already be gone.
func (m *Manager) Kill(id string, mode KillMode) error {
	session, ok := m.registry.sessions.get(id)
	if !ok {
		return nil
	}
	fields := map[string]string{
		"pty_id": id,
		"pid":    strconv.Itoa(session.Pid),
		"mode":   mode.String(),
	}

	switch mode {
	case Interrupt:
		if err := m.procs.Signal(-session.Pid, syscall.SIGINT); err != nil {
			if err := m.procs.Signal(session.Pid, syscall.SIGINT); err != nil {
				m.logSignalFailure(fields, err)
			}
		}
	case Terminate:
		m.signalTree(session.Pid, syscall.SIGTERM, fields)
	case ForceKill:
		m.signalTree(session.Pid, syscall.SIGKILL, fields)
		m.registry.remove(id)
	default:
		return fmt.Errorf("kill %s: unsupported mode %s", id, mode)
	}
	m.logger.Info("pty signaled", fields)
	return nil
}

// signalTree signals every descendant of root, deepest first, then root.
func (m *Manager) signalTree(root int, sig syscall.Signal, fields map[string]string) {
	for _, pid := range process.Tree(m.finder, root) {
		if err := m.procs.Signal(pid, sig); err != nil {
			m.logSignalFailure(mergeFields(fields, map[string]string{"target": strconv.Itoa(pid)}), err)
		}
	}
}

func (m *Manager) logSignalFailure(fields map[string]string, err error) {
	if errors.Is(err, process.ErrProcessNotFound) {
		return
	}
	m.logger.Warn("signal delivery failed", mergeFields(fields, map[string]string{"error": err.Error()}))
}

type shutdownTarget struct {
	pid  int
	name string
}

// ShutdownAll stops every live session with escalating signals: SIGHUP,
// then SIGTERM for survivors after the hangup grace, then SIGKILL after the
// terminate grace. Progress is emitted as shutdown-progress events. Only the
// first call does any work; it reports whether any sessions existed.
// Cancelling ctx cuts the grace windows short.
func (m *Manager) ShutdownAll(ctx context.Context) bool {
	if !m.shuttingDown.CompareAndSwap(false, true) {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// Wait for in-flight spawns so their sessions are included below.
	m.lifecycle.Lock()
	m.lifecycle.Unlock()

	logger := m.logger.ForCategory(logging.CategoryShutdown)
	sessions := m.registry.list()
	if len(sessions) == 0 {
		m.clearPIDs(logger)
		m.progress(event.ShutdownProgress{Phase: event.PhaseComplete, Message: "Done"})
		return false
	}

	m.progress(event.ShutdownProgress{Phase: event.PhaseStarting, Message: "Cleaning up..."})
	targets := m.collectTargets(sessions)
	logger.Info("shutdown started", map[string]string{
		"sessions":  strconv.Itoa(len(sessions)),
		"processes": strconv.Itoa(len(targets)),
	})

	m.progress(event.ShutdownProgress{
		Phase:   event.PhaseSignaling,
		Message: fmt.Sprintf("Terminating %d processes...", len(targets)),
	})
	m.signalAlive(targets, syscall.SIGHUP)
	sleepContext(ctx, m.hangupGrace)

	if survivors := m.survivors(targets); len(survivors) > 0 {
		m.signalAlive(survivors, syscall.SIGTERM)
		sleepContext(ctx, m.terminateGrace)
	}

	if survivors := m.survivors(targets); len(survivors) > 0 {
		m.progress(event.ShutdownProgress{
			Phase:   event.PhaseSignaling,
			Message: fmt.Sprintf("Force killing %d processes...", len(survivors)),
		})
		for _, target := range survivors {
			if !m.procs.Alive(target.pid) {
				continue
			}
			m.progress(event.ShutdownProgress{
				Phase:       event.PhaseSignaling,
				Message:     "Force killing " + displayName(target),
				ProcessName: target.name,
				Pid:         target.pid,
				Signal:      process.SignalName(syscall.SIGKILL),
			})
			if err := m.procs.Signal(target.pid, syscall.SIGKILL); err != nil && !errors.Is(err, process.ErrProcessNotFound) {
				logger.Warn("force kill failed", map[string]string{
					"pid":   strconv.Itoa(target.pid),
					"error": err.Error(),
				})
			}
		}
	}

	for _, session := range sessions {
		m.registry.remove(session.ID)
	}
	m.clearPIDs(logger)
	logger.Info("shutdown complete", map[string]string{"sessions": strconv.Itoa(len(sessions))})
	m.progress(event.ShutdownProgress{Phase: event.PhaseComplete, Message: "All processes terminated"})
	return true
}

// ShuttingDown reports whether ShutdownAll has been called.
func (m *Manager) ShuttingDown() bool {
	return m.shuttingDown.Load()
}

// collectTargets discovers the live process tree of every session
// concurrently. Children precede parents and duplicates are dropped.
func (m *Manager) collectTargets(sessions []*Session) []shutdownTarget {
	trees := make([][]shutdownTarget, len(sessions))
	var group errgroup.Group
	group.SetLimit(treeDiscoveryLimit)
	for i, session := range sessions {
		group.Go(func() error {
			if session.Pid <= 0 || !m.procs.Alive(session.Pid) {
				return nil
			}
			for _, pid := range process.Tree(m.finder, session.Pid) {
				if pid != session.Pid && !m.procs.Alive(pid) {
					continue
				}
				trees[i] = append(trees[i], shutdownTarget{pid: pid, name: m.procs.Name(pid)})
			}
			return nil
		})
	}
	_ = group.Wait()

	seen := make(map[int]struct{})
	var targets []shutdownTarget
	for _, tree := range trees {
		for _, target := range tree {
			if _, ok := seen[target.pid]; ok {
				continue
			}
			seen[target.pid] = struct{}{}
			targets = append(targets, target)
		}
	}
	return targets
}

func (m *Manager) signalAlive(targets []shutdownTarget, sig syscall.Signal) {
	for _, target := range targets {
		if !m.procs.Alive(target.pid) {
			continue
		}
		_ = m.procs.Signal(target.pid, sig)
	}
}

func (m *Manager) survivors(targets []shutdownTarget) []shutdownTarget {
	var alive []shutdownTarget
	for _, target := range targets {
		if m.procs.Alive(target.pid) {
			alive = append(alive, target)
		}
	}
	return alive
}

func (m *Manager) progress(payload event.ShutdownProgress) {
	m.sink.Emit(event.NameShutdownProgress, payload)
}

func (m *Manager) clearPIDs(logger *logging.Logger) {
	if err := m.pids.Clear(); err != nil {
		logger.Warn("pid file removal failed", map[string]string{"error": err.Error()})
	}
}

func displayName(target shutdownTarget) string {
	if target.name != "" {
		return target.name + " (" + strconv.Itoa(target.pid) + ")"
	}
	return "pid " + strconv.Itoa(target.pid)
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
