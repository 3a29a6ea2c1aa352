package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"deckhand/internal/event"
	"deckhand/internal/logging"
)

var ErrNotDirectory = errors.New("watch target is not a directory")

// FileWatchers reports uncommitted changes in worktrees. Each worktree gets
// one recursive watch; bursts of edits collapse into one files-changed event
// and deleting the worktree ends the watch with worktree-removed.
type FileWatchers struct {
	registry *Registry
	opts     Options
	logger   *logging.Logger
}

func NewFileWatchers(opts Options) *FileWatchers {
	opts = opts.withDefaults()
	return &FileWatchers{
		registry: NewRegistry("files", opts.Logger),
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Watch starts watching worktreePath under worktreeID. It returns false
// without error when the worktree is already watched.
func (w *FileWatchers) Watch(worktreeID, worktreePath string) (bool, error) {
	return w.registry.Register(worktreeID, func() (RunFunc, error) {
		info, err := os.Stat(worktreePath)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s: %w", worktreePath, ErrNotDirectory)
		}
		source, err := newNotifier(true, w.logger)
		if err != nil {
			return nil, err
		}
		if err := source.addTree(worktreePath); err != nil {
			_ = source.Close()
			return nil, err
		}
		w.logger.Info("file watcher started", map[string]string{
			"worktree_id":    worktreeID,
			"path":           worktreePath,
			"active_watches": strconv.Itoa(source.watchCount()),
		})
		return func(ctx context.Context) {
			w.run(ctx, worktreeID, worktreePath, source)
		}, nil
	})
}

func (w *FileWatchers) run(ctx context.Context, worktreeID, worktreePath string, source *notifier) {
	defer source.Close()
	ticker := time.NewTicker(w.opts.Tick)
	defer ticker.Stop()

	pending := debouncer{quiet: w.opts.FileDebounce}
	lastCheck := w.opts.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case fsEvent, ok := <-source.Events():
			if !ok {
				return
			}
			source.observe(fsEvent)
			pending.mark(w.opts.Now())
		case err, ok := <-source.Errors():
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", map[string]string{
				"worktree_id": worktreeID,
				"error":       err.Error(),
			})
		case <-ticker.C:
		}

		now := w.opts.Now()
		if now.Sub(lastCheck) >= w.opts.ExistenceCheck {
			lastCheck = now
			if !dirExists(worktreePath) {
				w.logger.Info("worktree removed externally", map[string]string{
					"worktree_id": worktreeID,
					"path":        worktreePath,
				})
				w.opts.Sink.Emit(event.NameWorktreeRemoved, event.WorktreeRemoved{WorktreePath: worktreePath})
				return
			}
		}
		if pending.due(now) {
			if payload, err := w.Snapshot(ctx, worktreePath); err == nil {
				w.opts.Sink.Emit(event.NameFilesChanged, payload)
			} else if ctx.Err() == nil {
				w.logger.Debug("changed files unavailable", map[string]string{
					"worktree_id": worktreeID,
					"error":       err.Error(),
				})
			}
		}
	}
}

// Snapshot runs the changed-files query for worktreePath synchronously.
func (w *FileWatchers) Snapshot(ctx context.Context, worktreePath string) (event.FilesChanged, error) {
	changes, err := w.opts.ChangedFiles(ctx, worktreePath)
	if err != nil {
		return event.FilesChanged{}, err
	}
	files := make([]event.ChangedFile, 0, len(changes))
	for _, change := range changes {
		files = append(files, event.ChangedFile{
			Path:       change.Path,
			Status:     change.Status,
			Insertions: change.Insertions,
			Deletions:  change.Deletions,
		})
	}
	return event.FilesChanged{WorktreePath: worktreePath, Files: files}, nil
}

func (w *FileWatchers) Stop(worktreeID string) bool {
	return w.registry.Cancel(worktreeID)
}

func (w *FileWatchers) StopAll() {
	w.registry.StopAll()
}

func (w *FileWatchers) Active(worktreeID string) bool {
	return w.registry.Active(worktreeID)
}

func (w *FileWatchers) Keys() []string {
	return w.registry.Keys()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
