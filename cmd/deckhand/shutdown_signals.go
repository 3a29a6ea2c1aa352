package main

import (
	"context"
	"os"
	"strconv"
	"sync"

	"deckhand/internal/logging"
)

// watchShutdownSignals cancels the run on the first signal. Later signals are
// counted and logged but change nothing, since the cascade already runs with
// its own grace windows. The returned func stops watching and waits for the
// watcher goroutine to exit.
func watchShutdownSignals(logger *logging.Logger, cancel context.CancelFunc, signals <-chan os.Signal) func() {
	if signals == nil {
		return func() {}
	}
	logger = logger.ForCategory(logging.CategoryShutdown)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		received := 0
		for {
			var sig os.Signal
			select {
			case <-done:
				return
			case s, ok := <-signals:
				if !ok {
					return
				}
				sig = s
			}
			received++
			fields := map[string]string{"count": strconv.Itoa(received)}
			if sig != nil {
				fields["signal"] = sig.String()
			}
			if received > 1 {
				logger.Info("shutdown already in progress; ignoring signal", fields)
				continue
			}
			logger.Info("shutdown signal received", fields)
			if cancel != nil {
				cancel()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
