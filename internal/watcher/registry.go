package watcher

import (
	"context"
	"errors"
	"sort"
	"sync"

	"deckhand/internal/logging"
)

var ErrRegistryClosed = errors.New("watcher registry closed")

// RunFunc is the body of a watcher task. It returns when ctx is cancelled or
// when the watched condition is gone.
type RunFunc func(ctx context.Context)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry owns the live tasks of one watcher kind, keyed by caller id.
type Registry struct {
	kind   string
	logger *logging.Logger

	mu     sync.Mutex
	tasks  map[string]*task
	closed bool
}

func NewRegistry(kind string, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		kind:   kind,
		logger: logger,
		tasks:  make(map[string]*task),
	}
}

// Register starts the task built by prepare unless a live task already holds
// key. The key is claimed before prepare runs, so concurrent callers cannot
// both start a task. When prepare fails or returns a nil RunFunc the claim is
// released and started is false.
func (r *Registry) Register(key string, prepare func() (RunFunc, error)) (started bool, err error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false, ErrRegistryClosed
	}
	if _, ok := r.tasks[key]; ok {
		r.mu.Unlock()
		return false, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	current := &task{cancel: cancel, done: make(chan struct{})}
	r.tasks[key] = current
	r.mu.Unlock()

	run, err := prepare()
	if err != nil || run == nil {
		cancel()
		r.release(key, current)
		close(current.done)
		if err != nil {
			r.logger.Warn("watcher start failed", map[string]string{
				"kind":  r.kind,
				"key":   key,
				"error": err.Error(),
			})
		}
		return false, err
	}

	r.logger.Debug("watcher started", map[string]string{"kind": r.kind, "key": key})
	go func() {
		defer close(current.done)
		defer r.release(key, current)
		defer cancel()
		run(ctx)
		r.logger.Debug("watcher stopped", map[string]string{"kind": r.kind, "key": key})
	}()
	return true, nil
}

// release drops key only while it still belongs to owner, so a task that
// exits late never removes a newer registration.
func (r *Registry) release(key string, owner *task) {
	r.mu.Lock()
	if r.tasks[key] == owner {
		delete(r.tasks, key)
	}
	r.mu.Unlock()
}

// Cancel asks the task for key to stop and frees the key at once. The task
// itself exits on its next tick.
func (r *Registry) Cancel(key string) bool {
	r.mu.Lock()
	current, ok := r.tasks[key]
	if ok {
		delete(r.tasks, key)
	}
	r.mu.Unlock()
	if ok {
		current.cancel()
	}
	return ok
}

// StopAll cancels every task and waits for them to exit. The registry stays
// usable.
func (r *Registry) StopAll() {
	r.mu.Lock()
	tasks := make([]*task, 0, len(r.tasks))
	for key, current := range r.tasks {
		tasks = append(tasks, current)
		delete(r.tasks, key)
	}
	r.mu.Unlock()

	for _, current := range tasks {
		current.cancel()
	}
	for _, current := range tasks {
		<-current.done
	}
}

// Close stops every task and refuses later registrations.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.StopAll()
}

func (r *Registry) Active(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.tasks[key]
	return ok
}

func (r *Registry) Keys() []string {
	r.mu.Lock()
	keys := make([]string, 0, len(r.tasks))
	for key := range r.tasks {
		keys = append(keys, key)
	}
	r.mu.Unlock()
	sort.Strings(keys)
	return keys
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

// done returns a channel closed when the task for key exits, or nil when no
// task holds key.
func (r *Registry) done(key string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.tasks[key]; ok {
		return current.done
	}
	return nil
}
