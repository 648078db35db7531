package stream

import (
	"context"
	"testing"
	"time"

	"chainlogistics.org/internal/tracking"
)

func TestPublishReachesSubscribers(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)

	want := tracking.Notice{
		Kind:      tracking.NoticeTrackingEvent,
		ProductID: "COFFEE-001",
		Actor:     "GADDR_OWNER",
		EventID:   7,
		EventType: "SHIPPED",
		Timestamp: 1700000000,
	}
	s.Publish(want)

	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notice")
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}

	// Publishing after unsubscribe must not panic.
	s.Publish(tracking.Notice{Kind: tracking.NoticeProductRegistered})
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Subscribe(ctx) // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			s.Publish(tracking.Notice{Kind: tracking.NoticeTrackingEvent, EventID: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
