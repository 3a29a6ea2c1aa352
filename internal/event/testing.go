package event

import (
	"sync"
	"testing"
	"time"
)

// Recorder captures emitted events for assertions.
type Recorder struct {
	mu     sync.Mutex
	events []Envelope
	notify chan struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan struct{}, 1)}
}

func (r *Recorder) Emit(name string, payload any) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, NewEnvelope(name, payload))
	r.mu.Unlock()
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Recorder) Events() []Envelope {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copyEvents := make([]Envelope, len(r.events))
	copy(copyEvents, r.events)
	return copyEvents
}

// Named returns the payloads of every event called name, in emission order.
func (r *Recorder) Named(name string) []any {
	var payloads []any
	for _, envelope := range r.Events() {
		if envelope.Name == name {
			payloads = append(payloads, envelope.Payload)
		}
	}
	return payloads
}

func (r *Recorder) Count(name string) int {
	return len(r.Named(name))
}

// WaitFor blocks until at least count events called name were recorded or
// fails the test after timeout.
func (r *Recorder) WaitFor(t *testing.T, name string, count int, timeout time.Duration) []any {
	t.Helper()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if payloads := r.Named(name); len(payloads) >= count {
			return payloads
		}
		select {
		case <-r.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline.C:
			t.Fatalf("timed out after %s waiting for %d %q events, got %d", timeout, count, name, r.Count(name))
			return nil
		}
	}
}

// ReceiveWithTimeout waits for a single event or fails the test.
func ReceiveWithTimeout[T any](t *testing.T, ch <-chan T, timeout time.Duration) T {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("event channel closed")
		}
		return event
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event after %s", timeout)
	}
	var zero T
	return zero
}
