package main

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"deckhand/internal/event"
	"deckhand/internal/logging"
	"deckhand/internal/terminal"
)

func exitEnvelope(id string, code *int) event.Envelope {
	return event.NewEnvelope(event.NamePtyExit, event.PtyExit{PtyID: id, ExitCode: code})
}

func TestWaitForSessionIgnoresOtherSessions(t *testing.T) {
	exits := make(chan event.Envelope, 2)
	three := 3
	zero := 0
	exits <- exitEnvelope("other", &zero)
	exits <- exitEnvelope("mine", &three)

	if code := waitForSession(context.Background(), "mine", exits); code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
}

func TestWaitForSessionUnknownStatus(t *testing.T) {
	exits := make(chan event.Envelope, 1)
	exits <- exitEnvelope("mine", nil)
	if code := waitForSession(context.Background(), "mine", exits); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
}

func TestWaitForSessionCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if code := waitForSession(ctx, "mine", make(chan event.Envelope)); code != 130 {
		t.Fatalf("expected exit code 130, got %d", code)
	}
}

type recordingWriter struct {
	mu     sync.Mutex
	writes []string
	limit  int
}

func (w *recordingWriter) Write(id string, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.limit > 0 && len(w.writes) >= w.limit {
		return terminal.ErrSessionNotFound
	}
	w.writes = append(w.writes, id+":"+string(data))
	return nil
}

func TestForwardInputWritesLines(t *testing.T) {
	writer := &recordingWriter{}
	forwardInput(strings.NewReader("ls\npwd\nexit"), writer, "s1", nil)

	want := []string{"s1:ls\n", "s1:pwd\n", "s1:exit"}
	if len(writer.writes) != len(want) {
		t.Fatalf("expected %v, got %v", want, writer.writes)
	}
	for i := range want {
		if writer.writes[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, writer.writes)
		}
	}
}

func TestForwardInputStopsWhenSessionGone(t *testing.T) {
	writer := &recordingWriter{limit: 1}
	forwardInput(strings.NewReader("a\nb\nc\n"), writer, "s1", nil)
	if len(writer.writes) != 1 {
		t.Fatalf("expected forwarding to stop after the session vanished, got %v", writer.writes)
	}
}

type recordingKiller struct {
	killed []terminal.KillMode
	exits  chan<- event.Envelope
	code   *int
}

func (k *recordingKiller) Kill(id string, mode terminal.KillMode) error {
	k.killed = append(k.killed, mode)
	if k.exits != nil {
		k.exits <- exitEnvelope(id, k.code)
	}
	return nil
}

func TestStopSessionReturnsChildExitCode(t *testing.T) {
	exits := make(chan event.Envelope, 1)
	code := 0
	killer := &recordingKiller{exits: exits, code: &code}

	got := stopSession(killer, "mine", terminal.Interrupt, time.Second, exits, nil)
	if got != 0 {
		t.Fatalf("expected exit code 0, got %d", got)
	}
	if len(killer.killed) != 1 || killer.killed[0] != terminal.Interrupt {
		t.Fatalf("expected one interrupt, got %v", killer.killed)
	}
}

func TestStopSessionGivesUpAfterGrace(t *testing.T) {
	killer := &recordingKiller{}
	got := stopSession(killer, "mine", terminal.Terminate, 20*time.Millisecond, make(chan event.Envelope), nil)
	if got != 130 {
		t.Fatalf("expected exit code 130, got %d", got)
	}
	if len(killer.killed) != 1 || killer.killed[0] != terminal.Terminate {
		t.Fatalf("expected one terminate, got %v", killer.killed)
	}
}

func TestLogRecentEventsNamesNewestEvents(t *testing.T) {
	buffer := logging.NewLogBuffer(16)
	bus := event.NewBus[event.Envelope](event.BusOptions{HistorySize: 2})
	defer bus.Close()
	a := &app{
		bus:    bus,
		logger: logging.NewLoggerWithOutput(buffer, logging.LevelInfo, io.Discard),
	}

	a.logRecentEvents()
	if entries := buffer.List(); len(entries) != 0 {
		t.Fatalf("expected nothing logged without events, got %+v", entries)
	}

	bus.Publish(event.NewEnvelope(event.NamePtyReady, nil))
	bus.Publish(event.NewEnvelope(event.NamePtyOutput, nil))
	bus.Publish(event.NewEnvelope(event.NamePtyExit, nil))
	a.logRecentEvents()

	entries := buffer.Recent(1, logging.LevelWarning)
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %+v", entries)
	}
	want := event.NamePtyOutput + "," + event.NamePtyExit
	if entries[0].Context["events"] != want || entries[0].Context["count"] != "2" {
		t.Fatalf("expected events %q, got %v", want, entries[0].Context)
	}
}
