package events

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(4)
	defer cancel()

	bus.Publish(Event{Type: TypePostCreated, PostID: "p1"})

	select {
	case ev := <-ch:
		if ev.Type != TypePostCreated || ev.PostID != "p1" {
			t.Errorf("unexpected event %+v", ev)
		}
		if ev.At.IsZero() {
			t.Error("expected timestamp to be set")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(Event{Type: TypeCacheWritten})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestBus_Cancel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	other, otherCancel := bus.Subscribe(1)
	defer otherCancel()

	cancel()
	cancel() // second call is a no-op

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	bus.Publish(Event{Type: TypeCacheWritten})
	if ev := <-other; ev.Type != TypeCacheWritten {
		t.Errorf("remaining subscriber got %+v", ev)
	}
}

func TestBus_NilPublish(t *testing.T) {
	var bus *Bus
	bus.Publish(Event{Type: TypeCacheWritten})
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Close()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}

	late, lateCancel := bus.Subscribe(1)
	defer lateCancel()
	if _, ok := <-late; ok {
		t.Error("subscription after Close should be closed")
	}
}
