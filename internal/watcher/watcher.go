package watcher

import (
	"context"
	"time"

	"deckhand/internal/event"
	"deckhand/internal/git"
	"deckhand/internal/logging"
)

const (
	DefaultTick           = 100 * time.Millisecond
	DefaultFileDebounce   = 500 * time.Millisecond
	DefaultExistenceCheck = 2 * time.Second
	DefaultStatePoll      = 500 * time.Millisecond
	DefaultConfigDebounce = 300 * time.Millisecond
	DefaultConfigDirName  = ".deckhand"
)

// ChangedFilesFunc summarizes the uncommitted changes of a worktree.
type ChangedFilesFunc func(ctx context.Context, worktreePath string) ([]git.FileChange, error)

// Options configures every watcher kind. Zero values select the defaults.
type Options struct {
	Sink   event.Sink
	Logger *logging.Logger

	Tick           time.Duration
	FileDebounce   time.Duration
	ExistenceCheck time.Duration
	StatePoll      time.Duration
	ConfigDebounce time.Duration
	ConfigDirName  string

	// ChangedFiles defaults to git.ChangedFiles.
	ChangedFiles ChangedFilesFunc
	// ConfigPaths lists the config files watched for a project; the default
	// is DefaultConfigPaths.
	ConfigPaths func(projectPath string) []string
	// Now is the clock used for debounce and existence checks.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Sink == nil {
		o.Sink = event.Discard
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	o.Logger = o.Logger.ForCategory(logging.CategoryWatcher)
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.FileDebounce <= 0 {
		o.FileDebounce = DefaultFileDebounce
	}
	if o.ExistenceCheck <= 0 {
		o.ExistenceCheck = DefaultExistenceCheck
	}
	if o.StatePoll <= 0 {
		o.StatePoll = DefaultStatePoll
	}
	if o.ConfigDebounce <= 0 {
		o.ConfigDebounce = DefaultConfigDebounce
	}
	if o.ConfigDirName == "" {
		o.ConfigDirName = DefaultConfigDirName
	}
	if o.ChangedFiles == nil {
		o.ChangedFiles = git.ChangedFiles
	}
	if o.ConfigPaths == nil {
		dirName := o.ConfigDirName
		o.ConfigPaths = func(projectPath string) []string {
			return DefaultConfigPaths(projectPath, dirName)
		}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Set bundles one registry of each watcher kind.
type Set struct {
	Files  *FileWatchers
	Merge  *StateWatchers
	Rebase *StateWatchers
	Config *ConfigWatcher
}

func NewSet(opts Options) *Set {
	return &Set{
		Files:  NewFileWatchers(opts),
		Merge:  NewMergeWatchers(opts),
		Rebase: NewRebaseWatchers(opts),
		Config: NewConfigWatcher(opts),
	}
}

// StopAll stops every watcher of every kind and waits for them to exit.
func (s *Set) StopAll() {
	if s == nil {
		return
	}
	s.Files.StopAll()
	s.Merge.StopAll()
	s.Rebase.StopAll()
	s.Config.Stop()
}
