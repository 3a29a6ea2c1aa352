package terminal

import (
	"errors"
	"io"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"deckhand/internal/event"
)

// pump is the only reader of a session's master and the only goroutine that
// closes it. It runs until the child side goes away, then reaps the child and
// emits pty-exit.
func (m *Manager) pump(session *Session, master Pty) {
	logFields := map[string]string{"pty_id": session.ID}
	sampler := rate.Sometimes{First: 5, Every: 100}

	var chunker utf8Chunker
	buf := make([]byte, m.readBufferSize)
	total := 0
	reads := 0
	empty := 0
	ready := false

	for {
		n, err := master.Read(buf)
		if n > 0 {
			empty = 0
			reads++
			total += n
			sampler.Do(func() {
				m.logger.Debug("pty read", map[string]string{
					"pty_id": session.ID,
					"bytes":  strconv.Itoa(n),
					"total":  strconv.Itoa(total),
					"reads":  strconv.Itoa(reads),
				})
			})

			if !ready && total > m.readyThreshold {
				ready = true
				m.sink.Emit(event.NamePtyReady, event.PtyReady{
					PtyID:      session.ID,
					WorktreeID: session.OwnerID,
				})
			}
			if text := chunker.Push(buf[:n]); text != "" {
				m.sink.Emit(event.NamePtyOutput, event.PtyOutput{PtyID: session.ID, Data: text})
			}
		}
		if err == nil && n > 0 {
			continue
		}
		if err != nil && !isEmptyRead(err) {
			if !isClosedTerminal(err) {
				m.logger.Warn("pty read failed", mergeFields(logFields, map[string]string{"error": err.Error()}))
			}
			break
		}
		if n == 0 {
			empty++
			if empty > m.readRetryLimit {
				break
			}
			time.Sleep(m.readRetryDelay)
		}
	}

	if text := chunker.Flush(); text != "" {
		m.sink.Emit(event.NamePtyOutput, event.PtyOutput{PtyID: session.ID, Data: text})
	}

	exitCode := exitCodeFromWait(session.cmd.Wait())
	m.pids.Remove(session.Pid)
	m.registry.remove(session.ID)

	fields := mergeFields(logFields, map[string]string{
		"reads": strconv.Itoa(reads),
		"bytes": strconv.Itoa(total),
	})
	if exitCode != nil {
		fields["exit_code"] = strconv.Itoa(*exitCode)
	}
	m.logger.Info("pty exited", fields)

	m.sink.Emit(event.NamePtyExit, event.PtyExit{
		PtyID:      session.ID,
		WorktreeID: session.OwnerID,
		Command:    session.Command,
		ExitCode:   exitCode,
	})
	_ = master.Close()
}

// isEmptyRead reports read results that should be retried rather than end
// the loop.
func isEmptyRead(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR)
}

// isClosedTerminal reports the error a master returns once every slave
// descriptor is closed.
func isClosedTerminal(err error) bool {
	return errors.Is(err, syscall.EIO)
}

func mergeFields(base, extra map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(extra))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range extra {
		out[key] = value
	}
	return out
}
