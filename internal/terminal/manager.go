package terminal

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"deckhand/internal/event"
	"deckhand/internal/logging"
	"deckhand/internal/process"
)

const (
	defaultCols            = 80
	defaultRows            = 24
	defaultReadyThreshold  = 50
	defaultReadBufferBytes = 4096
	defaultReadRetryLimit  = 10
	defaultReadRetryDelay  = 10 * time.Millisecond
	defaultHangupGrace     = 500 * time.Millisecond
	defaultTerminateGrace  = 500 * time.Millisecond
	defaultTerm            = "xterm-256color"
	defaultColorTerm       = "truecolor"
)

type ManagerOptions struct {
	Sink       event.Sink
	Logger     *logging.Logger
	PtyFactory PtyFactory
	Shells     *ShellResolver
	Finder     process.TreeFinder
	Processes  process.Inspector
	PIDs       *process.PIDTable

	// ReadyThreshold is the cumulative output size that must be exceeded
	// before pty-ready fires.
	ReadyThreshold  int
	DefaultCols     uint16
	DefaultRows     uint16
	ReadBufferBytes int
	ReadRetryLimit  int
	ReadRetryDelay  time.Duration
	HangupGrace     time.Duration
	TerminateGrace  time.Duration
	Term            string
	ColorTerm       string
}

// Manager supervises PTY sessions. It is safe for concurrent use.
type Manager struct {
	registry *registry
	sink     event.Sink
	logger   *logging.Logger
	factory  PtyFactory
	shells   *ShellResolver
	finder   process.TreeFinder
	procs    process.Inspector
	pids     *process.PIDTable

	readyThreshold int
	defaultCols    uint16
	defaultRows    uint16
	readBufferSize int
	readRetryLimit int
	readRetryDelay time.Duration
	hangupGrace    time.Duration
	terminateGrace time.Duration
	term           string
	colorTerm      string

	// lifecycle is held shared by Spawn so ShutdownAll can wait out spawns
	// that started before the shutdown flag was set.
	lifecycle    sync.RWMutex
	shuttingDown atomic.Bool
}

// SpawnRequest describes a session to start.
type SpawnRequest struct {
	// OwnerID is the worktree or task the session belongs to.
	OwnerID string
	Dir     string
	// Command is LoginShell, a command line, or empty for the login shell.
	Command string
	// Shell overrides the resolved user shell for this call only.
	Shell string
	Cols  uint16
	Rows  uint16
	Env   map[string]string
}

func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	m := &Manager{
		registry:       newRegistry(),
		sink:           opts.Sink,
		logger:         logger.ForCategory(logging.CategoryPty),
		factory:        opts.PtyFactory,
		shells:         opts.Shells,
		finder:         opts.Finder,
		procs:          opts.Processes,
		pids:           opts.PIDs,
		readyThreshold: opts.ReadyThreshold,
		defaultCols:    opts.DefaultCols,
		defaultRows:    opts.DefaultRows,
		readBufferSize: opts.ReadBufferBytes,
		readRetryLimit: opts.ReadRetryLimit,
		readRetryDelay: opts.ReadRetryDelay,
		hangupGrace:    opts.HangupGrace,
		terminateGrace: opts.TerminateGrace,
		term:           opts.Term,
		colorTerm:      opts.ColorTerm,
	}
	if m.sink == nil {
		m.sink = event.Discard
	}
	if m.factory == nil {
		m.factory = DefaultPtyFactory()
	}
	if m.shells == nil {
		m.shells = NewShellResolver("")
	}
	if m.finder == nil {
		m.finder = process.DefaultTreeFinder()
	}
	if m.procs == nil {
		m.procs = process.System{}
	}
	if m.pids == nil {
		m.pids = process.NewPIDTable("", logger)
	}
	if m.readyThreshold <= 0 {
		m.readyThreshold = defaultReadyThreshold
	}
	if m.defaultCols == 0 {
		m.defaultCols = defaultCols
	}
	if m.defaultRows == 0 {
		m.defaultRows = defaultRows
	}
	if m.readBufferSize <= 0 {
		m.readBufferSize = defaultReadBufferBytes
	}
	if m.readRetryLimit <= 0 {
		m.readRetryLimit = defaultReadRetryLimit
	}
	if m.readRetryDelay <= 0 {
		m.readRetryDelay = defaultReadRetryDelay
	}
	if m.hangupGrace <= 0 {
		m.hangupGrace = defaultHangupGrace
	}
	if m.terminateGrace <= 0 {
		m.terminateGrace = defaultTerminateGrace
	}
	if m.term == "" {
		m.term = defaultTerm
	}
	if m.colorTerm == "" {
		m.colorTerm = defaultColorTerm
	}
	return m
}

// Spawn starts a child on a new pseudo-terminal and returns its session id.
// On error nothing is registered.
func (m *Manager) Spawn(req SpawnRequest) (string, error) {
	m.lifecycle.RLock()
	defer m.lifecycle.RUnlock()
	if m.shuttingDown.Load() {
		return "", ErrShuttingDown
	}

	argv := resolveArgv(req.Command, req.Shell, m.shells)
	cols, rows := req.Cols, req.Rows
	if cols == 0 {
		cols = m.defaultCols
	}
	if rows == 0 {
		rows = m.defaultRows
	}
	env := buildEnv(os.Environ(), envOptions{
		Path:      m.shells.LoginPath(),
		Dir:       req.Dir,
		Term:      m.term,
		ColorTerm: m.colorTerm,
		Overrides: req.Env,
	})

	master, cmd, err := m.factory.Start(StartSpec{
		Argv: argv,
		Dir:  req.Dir,
		Env:  env,
		Cols: cols,
		Rows: rows,
	})
	if err != nil {
		m.logger.Warn("pty spawn failed", map[string]string{
			"owner":   req.OwnerID,
			"command": req.Command,
			"error":   err.Error(),
		})
		return "", err
	}

	session := &Session{
		ID:        uuid.New().String(),
		OwnerID:   req.OwnerID,
		Command:   commandName(req.Command),
		Argv:      argv,
		Pid:       cmd.Process.Pid,
		CreatedAt: time.Now().UTC(),
		cmd:       cmd,
	}
	m.registry.add(session, master)
	m.pids.Add(process.Entry{
		PID:       session.Pid,
		Name:      filepath.Base(argv[0]),
		SessionID: session.ID,
		StartedAt: session.CreatedAt,
	})

	m.logger.Info("pty spawned", map[string]string{
		"pty_id": session.ID,
		"owner":  session.OwnerID,
		"pid":    strconv.Itoa(session.Pid),
		"argv0":  argv[0],
		"size":   strconv.Itoa(int(cols)) + "x" + strconv.Itoa(int(rows)),
	})

	go m.pump(session, master)
	return session.ID, nil
}

// Write sends data to the session's input. Concurrent writes are serialized
// in lock acquisition order only.
func (m *Manager) Write(id string, data []byte) error {
	writer, ok := m.registry.writers.get(id)
	if !ok {
		return ErrSessionNotFound
	}
	_, err := writer.Write(data)
	return err
}

func (m *Manager) Resize(id string, cols, rows uint16) error {
	master, ok := m.registry.masters.get(id)
	if !ok {
		return ErrSessionNotFound
	}
	return master.Resize(cols, rows)
}

func (m *Manager) Get(id string) (SessionInfo, bool) {
	session, ok := m.registry.sessions.get(id)
	if !ok {
		return SessionInfo{}, false
	}
	return session.Info(), true
}

// List returns the live sessions ordered by creation time.
func (m *Manager) List() []SessionInfo {
	sessions := m.registry.list()
	infos := make([]SessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, session.Info())
	}
	return infos
}

func (m *Manager) Count() int {
	return m.registry.sessions.size()
}

func commandName(command string) string {
	command = strings.TrimSpace(command)
	if command == "" {
		return LoginShell
	}
	return command
}
