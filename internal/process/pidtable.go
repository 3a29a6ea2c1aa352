package process

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"deckhand/internal/logging"
)

// Entry is one spawned child recorded for crash recovery.
type Entry struct {
	PID       int       `yaml:"pid"`
	Name      string    `yaml:"name"`
	SessionID string    `yaml:"session"`
	StartedAt time.Time `yaml:"started_at"`
	// Supervisor is the pid of the deckhand process that spawned the child.
	Supervisor int `yaml:"supervisor"`
}

type pidFile struct {
	Processes []Entry `yaml:"processes"`
}

// PIDTable tracks live child pids. When a path is configured every change is
// merged into the file on disk so a later run can find orphans of an unclean
// exit. Several supervisors may share one file; each only rewrites its own
// entries.
type PIDTable struct {
	mu      sync.Mutex
	entries map[int]Entry
	owner   int
	// fileMu serializes writers in this process; the flock only excludes
	// other processes.
	fileMu sync.Mutex
	path   string
	lock   *flock.Flock
	logger *logging.Logger
}

func NewPIDTable(path string, logger *logging.Logger) *PIDTable {
	table := &PIDTable{
		entries: make(map[int]Entry),
		owner:   os.Getpid(),
		path:    path,
		logger:  logger,
	}
	if path != "" {
		table.lock = flock.New(path + ".lock")
	}
	return table
}

func (t *PIDTable) Add(entry Entry) {
	if t == nil || entry.PID <= 0 {
		return
	}
	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}
	t.mu.Lock()
	entry.Supervisor = t.owner
	t.entries[entry.PID] = entry
	t.mu.Unlock()
	t.persist()
}

func (t *PIDTable) Remove(pid int) {
	if t == nil || pid <= 0 {
		return
	}
	t.mu.Lock()
	if _, ok := t.entries[pid]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.entries, pid)
	t.mu.Unlock()
	t.persist()
}

func (t *PIDTable) Contains(pid int) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[pid]
	return ok
}

// List returns the recorded entries ordered by pid.
func (t *PIDTable) List() []Entry {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Clear forgets every entry and drops them from the pid file. The file is
// deleted once no supervisor has entries left in it.
func (t *PIDTable) Clear() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	t.entries = make(map[int]Entry)
	t.mu.Unlock()
	if t.path == "" {
		return nil
	}
	return t.withLock(func() error {
		return t.mergeLocked(nil)
	})
}

func (t *PIDTable) snapshotLocked() []Entry {
	entries := make([]Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PID < entries[j].PID })
	return entries
}

func (t *PIDTable) persist() {
	if t.path == "" {
		return
	}
	var count int
	err := t.withLock(func() error {
		entries := t.List()
		count = len(entries)
		return t.mergeLocked(entries)
	})
	if err != nil {
		t.logger.Warn("pid file write failed", map[string]string{
			"path":    t.path,
			"entries": strconv.Itoa(count),
			"error":   err.Error(),
		})
	}
}

func (t *PIDTable) withLock(fn func() error) error {
	t.fileMu.Lock()
	defer t.fileMu.Unlock()
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	if err := t.lock.Lock(); err != nil {
		return fmt.Errorf("lock pid file: %w", err)
	}
	defer func() {
		_ = t.lock.Unlock()
	}()
	return fn()
}

// mergeLocked replaces this table's entries in the file with own, keeping
// whatever other supervisors recorded. The file lock must be held.
func (t *PIDTable) mergeLocked(own []Entry) error {
	existing, err := readPIDFile(t.path)
	if err != nil {
		t.logger.Warn("pid file unreadable, rewriting", map[string]string{
			"path":  t.path,
			"error": err.Error(),
		})
		existing = nil
	}
	merged := make([]Entry, 0, len(existing)+len(own))
	for _, entry := range existing {
		if entry.Supervisor != t.owner {
			merged = append(merged, entry)
		}
	}
	merged = append(merged, own...)
	return writePIDFile(t.path, merged)
}

// PrunePIDFile rewrites the pid file keeping only the entries keep accepts.
func PrunePIDFile(path string, keep func(Entry) bool) error {
	if path == "" {
		return nil
	}
	lock := flock.New(path + ".lock")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock pid file: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	existing, err := readPIDFile(path)
	if err != nil {
		return err
	}
	kept := existing[:0]
	for _, entry := range existing {
		if keep(entry) {
			kept = append(kept, entry)
		}
	}
	return writePIDFile(path, kept)
}

func readPIDFile(path string) ([]Entry, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var decoded pidFile
	if err := yaml.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode pid file %s: %w", path, err)
	}
	return decoded.Processes, nil
}

// writePIDFile replaces the file atomically, removing it when entries is empty.
func writePIDFile(path string, entries []Entry) error {
	if len(entries) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PID < entries[j].PID })
	payload, err := yaml.Marshal(pidFile{Processes: entries})
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadPIDFile reads entries persisted by a previous run. A missing file yields
// no entries.
func LoadPIDFile(path string) ([]Entry, error) {
	if path == "" {
		return nil, nil
	}
	lock := flock.New(path + ".lock")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock pid file: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
	}()
	return readPIDFile(path)
}

// DefaultPIDFile returns the per-user location of the pid file.
func DefaultPIDFile() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "deckhand", "pids.yaml")
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "deckhand", "pids.yaml")
	}
	return filepath.Join(os.TempDir(), "deckhand-pids.yaml")
}
