package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"deckhand/internal/config"
	"deckhand/internal/event"
	"deckhand/internal/logging"
	"deckhand/internal/process"
	"deckhand/internal/terminal"
	"deckhand/internal/watcher"
)

const (
	eventWriteTimeout = time.Second
	eventHistorySize  = 256
	// recentEventsLogged bounds the event trail logged after a failed run.
	recentEventsLogged = 20
)

// app owns every long-lived component of one deckhand run.
type app struct {
	settings  config.Settings
	logger    *logging.Logger
	logCloser io.Closer

	bus        *event.Bus[event.Envelope]
	sink       event.Sink
	streamDone chan struct{}
	stream     *event.JSONLines

	pidPath  string
	pids     *process.PIDTable
	manager  *terminal.Manager
	watchers *watcher.Set
}

func newApp(settings config.Settings, stdout, stderr io.Writer) (*app, error) {
	output, logCloser, err := logging.NewOutput(stderr, logging.FileConfig{
		Dir:        settings.Log.Dir,
		MaxSizeMB:  settings.Log.MaxSizeMB,
		MaxBackups: settings.Log.MaxBackups,
		MaxAgeDays: settings.Log.MaxAgeDays,
		Compress:   settings.Log.Compress,
	})
	if err != nil {
		return nil, err
	}
	level, ok := logging.ParseLevel(settings.Log.Level)
	if !ok {
		level = logging.LevelInfo
	}
	logger := logging.NewLoggerWithOutput(logging.NewLogBuffer(logging.DefaultBufferSize), level, output)

	// Closed by the last shutdown phase so shutdown progress is still streamed.
	bus := event.NewBus[event.Envelope](event.BusOptions{
		Name:         "deckhand_events",
		BlockOnFull:  true,
		WriteTimeout: eventWriteTimeout,
		HistorySize:  eventHistorySize,
		Logger:       logger,
	})

	pidPath := settings.Recovery.PIDFile
	if pidPath == "" {
		pidPath = process.DefaultPIDFile()
	}

	a := &app{
		settings:   settings,
		logger:     logger,
		logCloser:  logCloser,
		bus:        bus,
		sink:       event.NewBusSink(bus),
		streamDone: make(chan struct{}),
		stream:     event.NewJSONLines(stdout),
		pidPath:    pidPath,
	}
	a.startStream()
	return a, nil
}

// logRecentEvents writes the names of the newest events to the log, so a run
// that ended badly can be traced even when stdout was not captured.
func (a *app) logRecentEvents() {
	recent := a.bus.Recent(recentEventsLogged)
	if len(recent) == 0 {
		return
	}
	names := make([]string, len(recent))
	for i, envelope := range recent {
		names[i] = envelope.Name
	}
	a.logger.Warn("recent events before exit", map[string]string{
		"count":  strconv.Itoa(len(recent)),
		"events": strings.Join(names, ","),
	})
}

// startStream copies every bus event to stdout as JSON lines until the bus
// closes.
func (a *app) startStream() {
	events, _ := a.bus.Subscribe()
	go func() {
		defer close(a.streamDone)
		for envelope := range events {
			if err := a.stream.Write(envelope); err != nil {
				a.logger.Warn("event stream write failed", map[string]string{"error": err.Error()})
				for range events {
				}
				return
			}
		}
	}()
}

// reapStale stops children recorded by a previous run that did not shut
// down cleanly, then starts a fresh pid table.
func (a *app) reapStale(ctx context.Context) {
	logger := a.logger.ForCategory(logging.CategoryProcess)
	entries, err := process.LoadPIDFile(a.pidPath)
	if err != nil {
		logger.Warn("pid file unreadable", map[string]string{
			"path":  a.pidPath,
			"error": err.Error(),
		})
	}
	if len(entries) > 0 {
		reaped, err := process.ReapStale(ctx, entries, process.ReapOptions{Logger: a.logger})
		fields := map[string]string{
			"recorded": strconv.Itoa(len(entries)),
			"reaped":   strconv.Itoa(len(reaped)),
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		logger.Info("stale processes checked", fields)
		self := os.Getpid()
		err = process.PrunePIDFile(a.pidPath, func(entry process.Entry) bool {
			return process.SupervisorAlive(process.System{}, entry, self)
		})
		if err != nil {
			logger.Warn("pid file prune failed", map[string]string{
				"path":  a.pidPath,
				"error": err.Error(),
			})
		}
	}
	a.pids = process.NewPIDTable(a.pidPath, a.logger)
}

func (a *app) startSupervisor() {
	if a.pids == nil {
		a.pids = process.NewPIDTable(a.pidPath, a.logger)
	}
	pty := a.settings.Pty
	a.manager = terminal.NewManager(terminal.ManagerOptions{
		Sink:            a.sink,
		Logger:          a.logger,
		Shells:          terminal.NewShellResolver(pty.Shell),
		PIDs:            a.pids,
		ReadyThreshold:  int(pty.ReadyThreshold),
		DefaultCols:     pty.DefaultCols,
		DefaultRows:     pty.DefaultRows,
		ReadBufferBytes: int(pty.ReadBufferBytes),
		ReadRetryLimit:  int(pty.ReadRetryLimit),
		ReadRetryDelay:  pty.ReadRetryDelay,
		HangupGrace:     a.settings.Shutdown.HangupGrace,
		TerminateGrace:  a.settings.Shutdown.TerminateGrace,
		Term:            pty.Term,
		ColorTerm:       pty.ColorTerm,
	})
	watch := a.settings.Watch
	a.watchers = watcher.NewSet(watcher.Options{
		Sink:           a.sink,
		Logger:         a.logger,
		Tick:           watch.Tick,
		FileDebounce:   watch.FileDebounce,
		ExistenceCheck: watch.ExistenceCheck,
		StatePoll:      watch.StatePoll,
		ConfigDebounce: watch.ConfigDebounce,
		ConfigDirName:  watch.ConfigDirName,
	})
}

// startWatchers registers the watchers requested by cfg. Failures are logged
// and never stop the session.
func (a *app) startWatchers(cfg Config) {
	logger := a.logger.ForCategory(logging.CategoryWatcher)
	warn := func(kind string, err error) {
		if err != nil && !errors.Is(err, watcher.ErrNotRepository) {
			logger.Warn("watcher not started", map[string]string{
				"kind":  kind,
				"error": err.Error(),
			})
		}
	}
	if cfg.Watch {
		_, err := a.watchers.Files.Watch(cfg.Owner, cfg.Dir)
		warn("files", err)
		_, err = a.watchers.Merge.Watch(cfg.Owner, cfg.Dir)
		warn("merge", err)
		_, err = a.watchers.Rebase.Watch(cfg.Owner, cfg.Dir)
		warn("rebase", err)
	}
	if cfg.WatchConfig {
		warn("config", a.watchers.Config.Watch(cfg.Dir))
	}
}

// shutdown stops sessions, then watchers, then drains the event stream.
func (a *app) shutdown(ctx context.Context) error {
	coordinator := newShutdownCoordinator(a.logger)
	coordinator.Add("sessions", func(ctx context.Context) error {
		if a.manager != nil {
			a.manager.ShutdownAll(ctx)
		}
		return nil
	})
	coordinator.Add("watchers", func(context.Context) error {
		if a.watchers != nil {
			a.watchers.StopAll()
		}
		return nil
	})
	coordinator.Add("events", func(ctx context.Context) error {
		a.bus.Close()
		stats := a.bus.Stats()
		a.logger.Debug("event bus closed", map[string]string{
			"published": strconv.FormatInt(stats.Published, 10),
			"dropped":   strconv.FormatInt(stats.Dropped, 10),
		})
		select {
		case <-a.streamDone:
			return a.stream.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	coordinator.Add("log", func(context.Context) error {
		return a.logCloser.Close()
	})
	return coordinator.Run(ctx)
}
