package event

import (
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"deckhand/internal/buffer"
	"deckhand/internal/logging"
)

const (
	defaultSubscriberBufferSize = 128
	dropWarningInterval         = 30 * time.Second
)

type BusOptions struct {
	Name                 string
	SubscriberBufferSize int
	// BlockOnFull waits up to WriteTimeout for a full subscriber instead of
	// dropping the event. Subscribers that time out are removed.
	BlockOnFull  bool
	WriteTimeout time.Duration
	// HistorySize keeps the newest published events for Recent.
	HistorySize int
	Logger      *logging.Logger
}

// BusStats is a point-in-time view of bus activity.
type BusStats struct {
	Published   int64
	Dropped     int64
	Subscribers int
}

type typedEvent interface {
	Type() string
}

// Bus fans published events out to channel subscribers. Each subscriber sees
// events from one publisher in publish order; subscribers are served in the
// order they subscribed.
type Bus[T any] struct {
	opts   BusOptions
	logger *logging.Logger

	mu          sync.Mutex
	subscribers []*subscriber[T]
	history     *buffer.Ring[T]
	closed      bool

	nextID      atomic.Uint64
	published   atomic.Int64
	dropped     atomic.Int64
	dropWarning rate.Sometimes
}

type subscriber[T any] struct {
	id     uint64
	ch     chan T
	filter func(T) bool
	once   sync.Once
}

func (s *subscriber[T]) close() {
	s.once.Do(func() { close(s.ch) })
}

func NewBus[T any](opts BusOptions) *Bus[T] {
	if opts.SubscriberBufferSize <= 0 {
		opts.SubscriberBufferSize = defaultSubscriberBufferSize
	}
	if opts.Name == "" {
		opts.Name = "event_bus"
	}
	bus := &Bus[T]{
		opts:        opts,
		logger:      opts.Logger,
		dropWarning: rate.Sometimes{First: 1, Interval: dropWarningInterval},
	}
	if opts.HistorySize > 0 {
		bus.history = buffer.NewRing[T](opts.HistorySize)
	}
	return bus
}

func (b *Bus[T]) Subscribe() (<-chan T, func()) {
	return b.SubscribeFiltered(nil)
}

// SubscribeFiltered receives only events for which filter returns true. A
// filter that panics unsubscribes its subscriber.
func (b *Bus[T]) SubscribeFiltered(filter func(T) bool) (<-chan T, func()) {
	sub := &subscriber[T]{
		ch:     make(chan T, b.opts.SubscriberBufferSize),
		filter: filter,
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	sub.id = b.nextID.Add(1)
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	return sub.ch, func() { b.unsubscribe(sub.id) }
}

// SubscribeTypes receives only events whose Type matches one of names.
func (b *Bus[T]) SubscribeTypes(names ...string) (<-chan T, func()) {
	wanted := slices.DeleteFunc(slices.Clone(names), func(name string) bool { return name == "" })
	if len(wanted) == 0 {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}
	return b.SubscribeFiltered(func(event T) bool {
		typed, ok := any(event).(typedEvent)
		return ok && slices.Contains(wanted, typed.Type())
	})
}

func (b *Bus[T]) Publish(event T) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.history.Add(event)
	targets := slices.Clone(b.subscribers)
	b.mu.Unlock()

	b.published.Add(1)
	for _, sub := range targets {
		if !b.accepts(sub, event) {
			continue
		}
		if !b.deliver(sub, event) {
			b.dropped.Add(1)
			b.dropWarning.Do(b.warnDrops)
		}
	}
}

// Close closes every subscriber channel. Events already buffered stay
// readable. Publishing after Close is a no-op.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subscribers := b.subscribers
	b.subscribers = nil
	b.mu.Unlock()

	for _, sub := range subscribers {
		sub.close()
	}
}

// Recent returns up to n of the newest published events, oldest first.
func (b *Bus[T]) Recent(n int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.history.Last(n)
}

func (b *Bus[T]) Stats() BusStats {
	b.mu.Lock()
	subscribers := len(b.subscribers)
	b.mu.Unlock()
	return BusStats{
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: subscribers,
	}
}

func (b *Bus[T]) deliver(sub *subscriber[T], event T) (delivered bool) {
	// The subscriber may be closed concurrently by unsubscribe or Close.
	defer func() {
		if recover() != nil {
			delivered = false
		}
	}()
	if !b.opts.BlockOnFull {
		select {
		case sub.ch <- event:
			return true
		default:
			return false
		}
	}
	if b.opts.WriteTimeout <= 0 {
		sub.ch <- event
		return true
	}
	timer := time.NewTimer(b.opts.WriteTimeout)
	defer timer.Stop()
	select {
	case sub.ch <- event:
		return true
	case <-timer.C:
		b.logger.Warn("event bus subscriber too slow; unsubscribing", map[string]string{
			"bus":        b.opts.Name,
			"subscriber": strconv.FormatUint(sub.id, 10),
		})
		b.unsubscribe(sub.id)
		return false
	}
}

func (b *Bus[T]) accepts(sub *subscriber[T], event T) (ok bool) {
	if sub.filter == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			b.logger.Warn("event bus subscriber filter panicked", map[string]string{"bus": b.opts.Name})
			b.unsubscribe(sub.id)
			ok = false
		}
	}()
	return sub.filter(event)
}

func (b *Bus[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	var removed *subscriber[T]
	b.subscribers = slices.DeleteFunc(b.subscribers, func(sub *subscriber[T]) bool {
		if sub.id == id {
			removed = sub
			return true
		}
		return false
	})
	b.mu.Unlock()
	if removed != nil {
		removed.close()
	}
}

func (b *Bus[T]) warnDrops() {
	b.logger.Warn("event bus dropping events", map[string]string{
		"bus":       b.opts.Name,
		"dropped":   strconv.FormatInt(b.dropped.Load(), 10),
		"published": strconv.FormatInt(b.published.Load(), 10),
	})
}

// BusSink publishes emissions onto a bus of envelopes.
type BusSink struct {
	bus *Bus[Envelope]
}

func NewBusSink(bus *Bus[Envelope]) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) Emit(name string, payload any) {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.Publish(NewEnvelope(name, payload))
}
