package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"deckhand/internal/logging"
)

const defaultStopTimeout = 2 * time.Second

// commMax is the length at which ps truncates command names on Linux.
const commMax = 15

type ReapOptions struct {
	Inspector   Inspector
	Finder      TreeFinder
	Logger      *logging.Logger
	StopTimeout time.Duration
	// Self is the pid of the calling supervisor, os.Getpid() when zero.
	Self int
}

// ReapStale stops processes left behind by an earlier run. An entry is only
// touched when its pid is alive and the current process name still matches
// the recorded one, so reused pids are left alone. Entries whose supervisor
// is still running belong to another deckhand and are skipped. It returns the
// pids that were signaled.
func ReapStale(ctx context.Context, entries []Entry, opts ReapOptions) ([]int, error) {
	inspector := opts.Inspector
	if inspector == nil {
		inspector = System{}
	}
	timeout := opts.StopTimeout
	if timeout <= 0 {
		timeout = defaultStopTimeout
	}
	self := opts.Self
	if self <= 0 {
		self = os.Getpid()
	}
	logger := opts.Logger.ForCategory(logging.CategoryProcess)

	var reaped []int
	var reapErr error
	for _, entry := range entries {
		if entry.PID <= 0 || !inspector.Alive(entry.PID) {
			continue
		}
		if SupervisorAlive(inspector, entry, self) {
			logger.Debug("skipping pid owned by running supervisor", map[string]string{
				"pid":        strconv.Itoa(entry.PID),
				"supervisor": strconv.Itoa(entry.Supervisor),
			})
			continue
		}
		current := inspector.Name(entry.PID)
		if !SameName(entry.Name, current) {
			logger.Debug("skipping reused pid", map[string]string{
				"pid":      strconv.Itoa(entry.PID),
				"recorded": entry.Name,
				"current":  current,
			})
			continue
		}
		logger.Info("reaping stale process", map[string]string{
			"pid":     strconv.Itoa(entry.PID),
			"name":    entry.Name,
			"session": entry.SessionID,
		})
		if err := stopTree(ctx, inspector, opts.Finder, entry.PID, timeout); err != nil && !errors.Is(err, ErrProcessNotFound) {
			reapErr = errors.Join(reapErr, err)
		}
		reaped = append(reaped, entry.PID)
	}
	return reaped, reapErr
}

// SupervisorAlive reports whether the supervisor that recorded entry is a
// running process other than self. Entries without a supervisor are orphans.
func SupervisorAlive(inspector Inspector, entry Entry, self int) bool {
	if entry.Supervisor <= 0 || entry.Supervisor == self {
		return false
	}
	return inspector.Alive(entry.Supervisor)
}

// SameName compares a recorded command name with the one reported by ps,
// tolerating paths and kernel truncation.
func SameName(recorded, current string) bool {
	recorded = strings.TrimPrefix(filepath.Base(strings.TrimSpace(recorded)), "-")
	current = strings.TrimPrefix(filepath.Base(strings.TrimSpace(current)), "-")
	if recorded == "" || current == "" || recorded == "." || current == "." {
		return false
	}
	if recorded == current {
		return true
	}
	if len(recorded) > commMax && len(current) == commMax {
		return recorded[:commMax] == current
	}
	return false
}

func stopTree(ctx context.Context, signaler Signaler, finder TreeFinder, pid int, timeout time.Duration) error {
	targets := Tree(finder, pid)
	var termErr error
	for _, target := range targets {
		if err := signaler.Signal(target, syscall.SIGTERM); err != nil && !errors.Is(err, ErrProcessNotFound) {
			termErr = errors.Join(termErr, err)
		}
	}
	waitErr := waitForExit(ctx, signaler, pid, timeout)
	if waitErr == nil {
		return termErr
	}
	var killErr error
	for _, target := range targets {
		if err := signaler.Signal(target, syscall.SIGKILL); err != nil && !errors.Is(err, ErrProcessNotFound) {
			killErr = errors.Join(killErr, err)
		}
	}
	return errors.Join(termErr, killErr)
}

func waitForExit(ctx context.Context, signaler Signaler, pid int, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	deadline := time.Now().Add(timeout)
	for {
		if !signaler.Alive(pid) {
			return nil
		}
		if !time.Now().Before(deadline) {
			return context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
