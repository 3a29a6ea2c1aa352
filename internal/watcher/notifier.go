package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"

	"deckhand/internal/logging"
)

const gitDirName = ".git"

// notifier wraps one fsnotify watcher. In recursive mode every directory under
// a root is watched, and directories created later are added as they appear.
// The .git directory is watched so index and HEAD updates register, but its
// subtree is not.
type notifier struct {
	fs        *fsnotify.Watcher
	recursive bool
	logger    *logging.Logger

	mu      sync.Mutex
	watched map[string]struct{}
}

func newNotifier(recursive bool, logger *logging.Logger) (*notifier, error) {
	source, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &notifier{
		fs:        source,
		recursive: recursive,
		logger:    logger,
		watched:   make(map[string]struct{}),
	}, nil
}

func (n *notifier) Events() <-chan fsnotify.Event {
	return n.fs.Events
}

func (n *notifier) Errors() <-chan error {
	return n.fs.Errors
}

func (n *notifier) Close() error {
	return n.fs.Close()
}

// add watches a single path. Adding a path twice is a no-op.
func (n *notifier) add(path string) error {
	path = filepath.Clean(path)
	n.mu.Lock()
	if _, ok := n.watched[path]; ok {
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	if err := n.fs.Add(path); err != nil {
		return err
	}
	n.mu.Lock()
	n.watched[path] = struct{}{}
	count := len(n.watched)
	n.mu.Unlock()
	n.logger.Debug("watch added", map[string]string{
		"path":           path,
		"active_watches": strconv.Itoa(count),
	})
	return nil
}

// addTree watches root and every directory below it. Only a failure on root
// itself is returned; unreadable subdirectories are skipped.
func (n *notifier) addTree(root string) error {
	if err := n.add(root); err != nil {
		return err
	}
	for _, dir := range collectRecursiveDirs(root) {
		if err := n.add(dir); err != nil {
			n.logger.Warn("watch add failed", map[string]string{
				"path":  dir,
				"error": err.Error(),
			})
		}
	}
	return nil
}

func collectRecursiveDirs(root string) []string {
	dirs := []string{}
	_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if entry != nil && entry.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !entry.IsDir() || path == root {
			return nil
		}
		dirs = append(dirs, path)
		if entry.Name() == gitDirName {
			return fs.SkipDir
		}
		return nil
	})
	return dirs
}

// observe keeps the watch set in step with the tree: new directories are
// added in recursive mode and removed paths are forgotten.
func (n *notifier) observe(event fsnotify.Event) {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		n.mu.Lock()
		delete(n.watched, filepath.Clean(event.Name))
		n.mu.Unlock()
		return
	}
	if !n.recursive || !event.Has(fsnotify.Create) {
		return
	}
	if insideGitDir(event.Name) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.IsDir() {
		return
	}
	if filepath.Base(event.Name) == gitDirName {
		_ = n.add(event.Name)
		return
	}
	if err := n.addTree(event.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		n.logger.Warn("watch add failed", map[string]string{
			"path":  event.Name,
			"error": err.Error(),
		})
	}
}

// insideGitDir reports whether path lies below a .git directory.
func insideGitDir(path string) bool {
	dir := filepath.Dir(filepath.Clean(path))
	for {
		if filepath.Base(dir) == gitDirName {
			return true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

func (n *notifier) watchCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watched)
}
