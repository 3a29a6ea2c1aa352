package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deckhand/internal/event"
	"deckhand/internal/git"
	"deckhand/internal/logging"
)

var ErrNotRepository = errors.New("no git directory found")

// StateWatchers waits for an in-progress git operation to finish. A watch
// only starts while the operation's marker exists, fires once when the marker
// disappears, and then ends; a new operation needs a new Watch call.
type StateWatchers struct {
	registry   *Registry
	opts       Options
	logger     *logging.Logger
	eventName  string
	inProgress func(gitDir string) bool
}

// NewMergeWatchers watches for MERGE_HEAD to disappear.
func NewMergeWatchers(opts Options) *StateWatchers {
	return newStateWatchers("merge", event.NameMergeComplete, git.MergeInProgress, opts)
}

// NewRebaseWatchers watches for both rebase state directories to disappear.
func NewRebaseWatchers(opts Options) *StateWatchers {
	return newStateWatchers("rebase", event.NameRebaseComplete, git.RebaseInProgress, opts)
}

func newStateWatchers(kind, eventName string, inProgress func(string) bool, opts Options) *StateWatchers {
	opts = opts.withDefaults()
	return &StateWatchers{
		registry:   NewRegistry(kind, opts.Logger),
		opts:       opts,
		logger:     opts.Logger.With(map[string]string{"kind": kind}),
		eventName:  eventName,
		inProgress: inProgress,
	}
}

// Watch starts a watcher for worktreeID when the operation is in progress in
// worktreePath. started is false when it is not, or when one is running.
func (w *StateWatchers) Watch(worktreeID, worktreePath string) (started bool, err error) {
	return w.registry.Register(worktreeID, func() (RunFunc, error) {
		gitDir := git.ResolveGitDir(worktreePath)
		if gitDir == "" {
			return nil, fmt.Errorf("%s: %w", worktreePath, ErrNotRepository)
		}
		if !w.inProgress(gitDir) {
			w.logger.Debug("no operation in progress", map[string]string{
				"worktree_id": worktreeID,
				"git_dir":     gitDir,
			})
			return nil, nil
		}
		w.logger.Info("state watcher started", map[string]string{
			"worktree_id": worktreeID,
			"git_dir":     gitDir,
		})
		return func(ctx context.Context) {
			w.run(ctx, worktreeID, worktreePath, gitDir)
		}, nil
	})
}

func (w *StateWatchers) run(ctx context.Context, worktreeID, worktreePath, gitDir string) {
	ticker := time.NewTicker(w.opts.StatePoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if w.inProgress(gitDir) {
			continue
		}
		w.logger.Info("operation complete", map[string]string{"worktree_id": worktreeID})
		w.opts.Sink.Emit(w.eventName, event.StateComplete{
			WorktreeID:   worktreeID,
			WorktreePath: worktreePath,
		})
		return
	}
}

func (w *StateWatchers) Stop(worktreeID string) bool {
	return w.registry.Cancel(worktreeID)
}

func (w *StateWatchers) StopAll() {
	w.registry.StopAll()
}

func (w *StateWatchers) Active(worktreeID string) bool {
	return w.registry.Active(worktreeID)
}
