package session

import (
	"testing"
	"time"
)

func TestSignalCurrentValue(t *testing.T) {
	sig := NewSignal(false)
	if sig.Get() {
		t.Fatalf("expected initial value")
	}
	sig.set(true)
	if !sig.Get() {
		t.Fatalf("expected updated value")
	}
}

func TestSignalSubscribeReceivesUpdates(t *testing.T) {
	sig := NewSignal(0)
	ch, cancel := sig.Subscribe()
	defer cancel()

	sig.set(1)
	sig.set(2)

	for _, want := range []int{1, 2} {
		select {
		case got := <-ch:
			if got != want {
				t.Fatalf("expected %d, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %d", want)
		}
	}
}

func TestSignalCancelStopsDelivery(t *testing.T) {
	sig := NewSignal("")
	ch, cancel := sig.Subscribe()
	cancel()

	sig.set("after-cancel")
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after cancel")
	}
}

func TestSignalSlowSubscriberDoesNotBlock(t *testing.T) {
	sig := NewSignal(0)
	_, cancel := sig.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sig.set(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher blocked on slow subscriber")
	}
}
