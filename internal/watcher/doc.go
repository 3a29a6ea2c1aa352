// Package watcher runs keyed background watchers that turn filesystem and git
// state changes into events.
//
// Every watcher kind shares one shape: a Registry holds at most one live task
// per key, the task wakes on a short tick, and bursts of activity are folded
// into a single trailing-edge notification. Cancellation is cooperative and is
// observed within one tick, so a caller may still see an event that was
// already in flight when it asked the watcher to stop.
package watcher
