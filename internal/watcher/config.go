package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"deckhand/internal/event"
	"deckhand/internal/logging"
)

const (
	configKey           = "config"
	configFileName      = "config.jsonc"
	localConfigFileName = "config.local.jsonc"
	globalConfigDirName = "deckhand"
)

var ErrNoConfigTargets = errors.New("no config path could be watched")

// DefaultConfigPaths lists the global config file and, for a project, its
// shared and local config files.
func DefaultConfigPaths(projectPath, dirName string) []string {
	var paths []string
	if base := userConfigDir(); base != "" {
		paths = append(paths, filepath.Join(base, globalConfigDirName, configFileName))
	}
	if strings.TrimSpace(projectPath) != "" {
		dir := filepath.Join(projectPath, dirName)
		paths = append(paths,
			filepath.Join(dir, configFileName),
			filepath.Join(dir, localConfigFileName),
		)
	}
	return paths
}

func userConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config")
}

// ConfigWatcher emits config-changed when any config file for the current
// project is written, created or removed. Only one project is watched at a
// time.
type ConfigWatcher struct {
	registry *Registry
	opts     Options
	logger   *logging.Logger
}

func NewConfigWatcher(opts Options) *ConfigWatcher {
	opts = opts.withDefaults()
	return &ConfigWatcher{
		registry: NewRegistry("config", opts.Logger),
		opts:     opts,
		logger:   opts.Logger,
	}
}

// Watch replaces any running config watcher with one for projectPath. An
// empty projectPath watches the global config only.
func (w *ConfigWatcher) Watch(projectPath string) error {
	w.registry.Cancel(configKey)
	_, err := w.registry.Register(configKey, func() (RunFunc, error) {
		paths := w.opts.ConfigPaths(projectPath)
		source, err := newNotifier(false, w.logger)
		if err != nil {
			return nil, err
		}
		names := make(map[string]struct{}, len(paths))
		for _, path := range paths {
			names[filepath.Base(path)] = struct{}{}
			target := path
			if _, err := os.Stat(path); err != nil {
				target = filepath.Dir(path)
			}
			if err := source.add(target); err != nil {
				w.logger.Debug("config watch skipped", map[string]string{
					"path":  target,
					"error": err.Error(),
				})
			}
		}
		if source.watchCount() == 0 {
			_ = source.Close()
			return nil, ErrNoConfigTargets
		}
		w.logger.Info("config watcher started", map[string]string{
			"project": projectPath,
			"targets": strconv.Itoa(source.watchCount()),
		})
		return func(ctx context.Context) {
			w.run(ctx, projectPath, names, source)
		}, nil
	})
	return err
}

func (w *ConfigWatcher) run(ctx context.Context, projectPath string, names map[string]struct{}, source *notifier) {
	defer source.Close()
	ticker := time.NewTicker(w.opts.Tick)
	defer ticker.Stop()

	var payload event.ConfigChanged
	if projectPath != "" {
		payload.ProjectPath = &projectPath
	}
	pending := debouncer{quiet: w.opts.ConfigDebounce}
	for {
		select {
		case <-ctx.Done():
			return
		case fsEvent, ok := <-source.Events():
			if !ok {
				return
			}
			if _, ok := names[filepath.Base(fsEvent.Name)]; ok {
				// Editors that save by rename drop the file watch; fall back
				// to the directory so the next write is still seen.
				if fsEvent.Has(fsnotify.Remove) || fsEvent.Has(fsnotify.Rename) {
					source.observe(fsEvent)
					_ = source.add(filepath.Dir(fsEvent.Name))
				}
				pending.mark(w.opts.Now())
			}
		case err, ok := <-source.Errors():
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", map[string]string{"error": err.Error()})
		case <-ticker.C:
		}
		if pending.due(w.opts.Now()) {
			w.logger.Info("config changed", map[string]string{"project": projectPath})
			w.opts.Sink.Emit(event.NameConfigChanged, payload)
		}
	}
}

// Stop ends the running config watcher, if any.
func (w *ConfigWatcher) Stop() {
	w.registry.StopAll()
}

func (w *ConfigWatcher) Active() bool {
	return w.registry.Active(configKey)
}
