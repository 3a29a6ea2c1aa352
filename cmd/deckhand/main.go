package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"deckhand/internal/config"
	"deckhand/internal/event"
	"deckhand/internal/logging"
	"deckhand/internal/terminal"
	"deckhand/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(args, os.Getenv, stdout)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(stderr, "deckhand:", err)
		return 2
	}
	if cfg.ShowVersion {
		fmt.Fprintln(stdout, version.Get())
		return 0
	}

	settings, err := config.LoadSettings(cfg.SettingsPath, config.DefaultsPayload, settingsOverrides(cfg))
	if err != nil {
		fmt.Fprintln(stderr, "deckhand: load settings:", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(settings, stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "deckhand:", err)
		return 1
	}
	a.logger.Info("deckhand starting", map[string]string{
		"version":  version.Get().Version,
		"dir":      cfg.Dir,
		"settings": cfg.SettingsPath,
	})
	if len(settings.UnknownKeys) > 0 {
		a.logger.Warn("unknown settings keys ignored", map[string]string{
			"keys": strings.Join(settings.UnknownKeys, ","),
		})
	}

	signalCh := make(chan os.Signal, 2)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signalCh)
	stopSignals := watchShutdownSignals(a.logger, cancel, signalCh)
	defer stopSignals()

	a.reapStale(ctx)
	a.startSupervisor()

	exits, stopExits := a.bus.SubscribeTypes(event.NamePtyExit)
	defer stopExits()

	sessionID, err := a.manager.Spawn(terminal.SpawnRequest{
		OwnerID: cfg.Owner,
		Dir:     cfg.Dir,
		Command: cfg.Command,
	})
	code := 1
	if err != nil {
		a.logger.Error("session start failed", map[string]string{"error": err.Error()})
	} else {
		a.startWatchers(cfg)
		go forwardInput(stdin, a.manager, sessionID, a.logger)
		code = waitForSession(ctx, sessionID, exits)
		if ctx.Err() != nil && cfg.KillMode != nil {
			code = stopSession(a.manager, sessionID, *cfg.KillMode, a.settings.Shutdown.HangupGrace, exits, a.logger)
		}
	}
	if code != 0 {
		a.logRecentEvents()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := a.shutdown(shutdownCtx); err != nil {
		fmt.Fprintln(stderr, "deckhand: shutdown:", err)
	}
	return code
}

// waitForSession blocks until the session exits or ctx is cancelled and
// returns the process exit code to use.
func waitForSession(ctx context.Context, sessionID string, exits <-chan event.Envelope) int {
	for {
		select {
		case <-ctx.Done():
			return 130
		case envelope, ok := <-exits:
			if !ok {
				return 1
			}
			exit, ok := envelope.Payload.(event.PtyExit)
			if !ok || exit.PtyID != sessionID {
				continue
			}
			if exit.ExitCode == nil {
				return 1
			}
			return *exit.ExitCode
		}
	}
}

type sessionKiller interface {
	Kill(id string, mode terminal.KillMode) error
}

// stopSession sends mode to the session and waits up to grace for it to exit
// on its own. It returns the exit code, or 130 when the session outlived grace.
func stopSession(sessions sessionKiller, sessionID string, mode terminal.KillMode, grace time.Duration, exits <-chan event.Envelope, logger *logging.Logger) int {
	logger.Info("stopping session", map[string]string{
		"pty_id": sessionID,
		"mode":   mode.String(),
	})
	if err := sessions.Kill(sessionID, mode); err != nil {
		logger.Warn("session stop failed", map[string]string{
			"pty_id": sessionID,
			"error":  err.Error(),
		})
		return 130
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return waitForSession(ctx, sessionID, exits)
}

type sessionWriter interface {
	Write(id string, data []byte) error
}

// forwardInput copies stdin into the session line by line until stdin ends
// or the session is gone.
func forwardInput(stdin io.Reader, sessions sessionWriter, sessionID string, logger *logging.Logger) {
	if stdin == nil {
		return
	}
	reader := bufio.NewReader(stdin)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if writeErr := sessions.Write(sessionID, line); writeErr != nil {
				if !errors.Is(writeErr, terminal.ErrSessionNotFound) {
					logger.Warn("input forwarding failed", map[string]string{"error": writeErr.Error()})
				}
				return
			}
		}
		if err != nil {
			return
		}
	}
}
