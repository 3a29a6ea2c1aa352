package watcher

import "time"

// debouncer is a trailing-edge debounce driven by the watcher's tick. Only
// the fact that something happened is kept; the latest activity wins.
type debouncer struct {
	quiet   time.Duration
	pending bool
	last    time.Time
}

func (d *debouncer) mark(now time.Time) {
	d.pending = true
	d.last = now
}

// due reports whether a pending burst has been quiet for long enough, and
// clears it when it has.
func (d *debouncer) due(now time.Time) bool {
	if !d.pending || now.Sub(d.last) < d.quiet {
		return false
	}
	d.pending = false
	return true
}
