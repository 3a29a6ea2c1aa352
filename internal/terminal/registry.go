package terminal

import (
	"io"
	"os/exec"
	"sort"
	"sync"
	"time"
)

// Session is one spawned child and its pseudo-terminal. Sessions are
// immutable once registered.
type Session struct {
	ID        string
	OwnerID   string
	Command   string
	Argv      []string
	Pid       int
	CreatedAt time.Time

	cmd *exec.Cmd
}

type SessionInfo struct {
	ID        string
	OwnerID   string
	Command   string
	Pid       int
	CreatedAt time.Time
}

func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		OwnerID:   s.OwnerID,
		Command:   s.Command,
		Pid:       s.Pid,
		CreatedAt: s.CreatedAt,
	}
}

// writerHandle serializes writes into one session.
type writerHandle struct {
	mu sync.Mutex
	w  io.Writer
}

func (h *writerHandle) Write(data []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.w.Write(data)
}

// masterHandle serializes resizes of one session.
type masterHandle struct {
	mu  sync.Mutex
	pty Pty
}

func (h *masterHandle) Resize(cols, rows uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pty.Resize(cols, rows)
}

// table is a map guarded by its own lock.
type table[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

func newTable[V any]() *table[V] {
	return &table[V]{items: make(map[string]V)}
}

func (t *table[V]) get(id string) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	value, ok := t.items[id]
	return value, ok
}

func (t *table[V]) put(id string, value V) {
	t.mu.Lock()
	t.items[id] = value
	t.mu.Unlock()
}

func (t *table[V]) remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.items[id]
	delete(t.items, id)
	return ok
}

func (t *table[V]) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

func (t *table[V]) values() []V {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]V, 0, len(t.items))
	for _, value := range t.items {
		out = append(out, value)
	}
	return out
}

// registry holds the session, writer and master tables. Each table has its
// own lock so a slow write never blocks a resize or a lookup.
type registry struct {
	sessions *table[*Session]
	writers  *table[*writerHandle]
	masters  *table[*masterHandle]
}

func newRegistry() *registry {
	return &registry{
		sessions: newTable[*Session](),
		writers:  newTable[*writerHandle](),
		masters:  newTable[*masterHandle](),
	}
}

func (r *registry) add(session *Session, master Pty) {
	r.masters.put(session.ID, &masterHandle{pty: master})
	r.writers.put(session.ID, &writerHandle{w: master})
	r.sessions.put(session.ID, session)
}

// remove deletes id from every table. Each removal is independent, so a
// repeated call is harmless.
func (r *registry) remove(id string) {
	r.sessions.remove(id)
	r.writers.remove(id)
	r.masters.remove(id)
}

func (r *registry) list() []*Session {
	sessions := r.sessions.values()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}
