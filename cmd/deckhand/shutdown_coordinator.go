package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"deckhand/internal/logging"
)

type shutdownPhase struct {
	name string
	stop func(context.Context) error
}

// shutdownCoordinator runs registered phases once, in order. A failing phase
// does not stop later ones. Later calls to Run return the first result.
type shutdownCoordinator struct {
	logger *logging.Logger

	mu     sync.Mutex
	phases []shutdownPhase
	done   bool
	err    error
}

func newShutdownCoordinator(logger *logging.Logger) *shutdownCoordinator {
	return &shutdownCoordinator{logger: logger.ForCategory(logging.CategoryShutdown)}
}

func (c *shutdownCoordinator) Add(name string, stop func(context.Context) error) {
	if c == nil || stop == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phases = append(c.phases, shutdownPhase{name: name, stop: stop})
}

func (c *shutdownCoordinator) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.err
	}
	c.done = true

	var errs []error
	for _, phase := range c.phases {
		started := time.Now()
		err := phase.stop(ctx)
		fields := map[string]string{
			"phase":    phase.name,
			"duration": time.Since(started).Round(time.Millisecond).String(),
		}
		if err != nil {
			fields["error"] = err.Error()
			c.logger.Warn("shutdown phase failed", fields)
			errs = append(errs, fmt.Errorf("%s: %w", phase.name, err))
			continue
		}
		c.logger.Info("shutdown phase finished", fields)
	}
	c.err = errors.Join(errs...)
	return c.err
}
