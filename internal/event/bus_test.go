package event

import (
	"testing"
	"time"
)

func TestBusSubscribePublish(t *testing.T) {
	bus := NewBus[int](BusOptions{})
	t.Cleanup(bus.Close)

	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(42)
	if got := ReceiveWithTimeout(t, ch, 100*time.Millisecond); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after cancel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestBusCloseClosesSubscribers(t *testing.T) {
	bus := NewBus[int](BusOptions{})
	ch, _ := bus.Subscribe()

	bus.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel to close after bus close")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for channel close")
	}
	bus.Publish(1)
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus[int](BusOptions{SubscriberBufferSize: 1})
	t.Cleanup(bus.Close)

	_, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(1)
	bus.Publish(2)
	bus.Publish(3)

	if got := bus.Stats().Dropped; got != 2 {
		t.Fatalf("expected 2 dropped deliveries, got %d", got)
	}
}

func TestBusBlockOnFullTimeoutRemovesSubscriber(t *testing.T) {
	bus := NewBus[int](BusOptions{
		SubscriberBufferSize: 1,
		BlockOnFull:          true,
		WriteTimeout:         20 * time.Millisecond,
	})
	t.Cleanup(bus.Close)

	_, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(1)
	bus.Publish(2)

	if bus.Stats().Subscribers != 0 {
		t.Fatalf("expected slow subscriber to be removed")
	}
}

func TestBusHistoryStoresRecentEvents(t *testing.T) {
	bus := NewBus[int](BusOptions{HistorySize: 2})
	t.Cleanup(bus.Close)

	bus.Publish(1)
	bus.Publish(2)
	bus.Publish(3)

	history := bus.Recent(10)
	if len(history) != 2 || history[0] != 2 || history[1] != 3 {
		t.Fatalf("unexpected history: %v", history)
	}
	if last := bus.Recent(1); len(last) != 1 || last[0] != 3 {
		t.Fatalf("unexpected newest event: %v", last)
	}
	if stats := bus.Stats(); stats.Published != 3 {
		t.Fatalf("expected 3 published, got %d", stats.Published)
	}
}

func TestBusSubscribeTypes(t *testing.T) {
	bus := NewBus[Envelope](BusOptions{})
	t.Cleanup(bus.Close)

	ch, cancel := bus.SubscribeTypes(NamePtyExit, NameShutdownProgress)
	defer cancel()

	sink := NewBusSink(bus)
	sink.Emit(NamePtyOutput, PtyOutput{PtyID: "a", Data: "hi"})
	sink.Emit(NamePtyExit, PtyExit{PtyID: "a"})

	got := ReceiveWithTimeout(t, ch, 100*time.Millisecond)
	if got.Name != NamePtyExit {
		t.Fatalf("expected %s, got %s", NamePtyExit, got.Name)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected event %s", extra.Name)
	default:
	}
}

func TestBusFilterPanicRemovesSubscriber(t *testing.T) {
	bus := NewBus[int](BusOptions{})
	t.Cleanup(bus.Close)

	_, cancel := bus.SubscribeFiltered(func(int) bool { panic("boom") })
	defer cancel()

	bus.Publish(1)
	if bus.Stats().Subscribers != 0 {
		t.Fatalf("expected panicking subscriber to be removed")
	}
}

func TestBusCloseKeepsBufferedEvents(t *testing.T) {
	bus := NewBus[int](BusOptions{})
	ch, _ := bus.Subscribe()

	bus.Publish(1)
	bus.Publish(2)
	bus.Close()

	got := []int{}
	for value := range ch {
		got = append(got, value)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("expected buffered events to drain after close, got %v", got)
	}
}

func TestBusSubscribeAfterCloseIsClosed(t *testing.T) {
	bus := NewBus[int](BusOptions{})
	bus.Close()

	ch, cancel := bus.Subscribe()
	defer cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
}
