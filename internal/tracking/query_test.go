package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"chainlogistics.org/internal/kv"
)

// seedEvents appends n events of eventType, one second apart, and returns
// their ids in append order.
func seedEvents(t *testing.T, l *Ledger, clock *stepClock, productID, eventType string, n int) []uint64 {
	t.Helper()
	ids := make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		clock.Advance(time.Second)
		id, err := l.AddTrackingEvent(context.Background(), "GADDR_A", productID, EventInput{
			EventType: eventType,
			Location:  "warehouse-7",
			DataHash:  testHash,
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	return ids
}

func newQueryFixture(t *testing.T) (*Ledger, *stepClock) {
	t.Helper()
	clock := newStepClock(1_700_000_000)
	l := New(kv.NewMemory(), WithClock(clock.Now))
	if _, err := l.RegisterProduct(context.Background(), "GADDR_A", testConfig("P-1")); err != nil {
		t.Fatal(err)
	}
	return l, clock
}

func TestPaginationForwardOrder(t *testing.T) {
	l, clock := newQueryFixture(t)
	ctx := context.Background()
	ids := seedEvents(t, l, clock, "P-1", "SHIP", 10)

	page, err := l.ProductEvents(ctx, "P-1", 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 10 || !page.HasMore || len(page.Events) != 3 {
		t.Fatalf("unexpected first page: total=%d has_more=%v len=%d", page.TotalCount, page.HasMore, len(page.Events))
	}
	for i, ev := range page.Events {
		if ev.EventID != ids[i] {
			t.Fatalf("event %d out of order: %d != %d", i, ev.EventID, ids[i])
		}
	}

	// last page is exact: has_more flips to false
	page, err = l.ProductEvents(ctx, "P-1", 7, 3)
	if err != nil {
		t.Fatal(err)
	}
	if page.HasMore || len(page.Events) != 3 {
		t.Fatalf("unexpected last page: has_more=%v len=%d", page.HasMore, len(page.Events))
	}

	// out-of-range offset is not an error
	page, err = l.ProductEvents(ctx, "P-1", 20, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Events) != 0 || page.HasMore || page.TotalCount != 10 {
		t.Fatalf("unexpected overflow page: %+v", page)
	}

	// zero limit returns an empty page but still reports the total
	page, err = l.ProductEvents(ctx, "P-1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Events) != 0 || page.TotalCount != 10 || !page.HasMore {
		t.Fatalf("unexpected zero-limit page: %+v", page)
	}

	if _, err := l.ProductEvents(ctx, "MISSING", 0, 5); !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestPaginationByType(t *testing.T) {
	l, clock := newQueryFixture(t)
	ctx := context.Background()
	shipIDs := seedEvents(t, l, clock, "P-1", "SHIP", 10)
	seedEvents(t, l, clock, "P-1", "ARRIVE", 4)

	page, err := l.EventsByType(ctx, "P-1", "SHIP", 5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 10 || page.HasMore || len(page.Events) != 5 {
		t.Fatalf("unexpected page: total=%d has_more=%v len=%d", page.TotalCount, page.HasMore, len(page.Events))
	}
	for i, ev := range page.Events {
		if ev.EventID != shipIDs[5+i] {
			t.Fatalf("type page out of order at %d: %d != %d", i, ev.EventID, shipIDs[5+i])
		}
	}

	page, err = l.EventsByType(ctx, "P-1", "SHIP", 20, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Events) != 0 || page.HasMore {
		t.Fatalf("unexpected overflow page: %+v", page)
	}

	// unknown type behaves like an empty index
	page, err = l.EventsByType(ctx, "P-1", "NEVER", 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 0 || len(page.Events) != 0 || page.HasMore {
		t.Fatalf("unexpected unknown-type page: %+v", page)
	}
}

func TestTypeCountsSumToForwardTotal(t *testing.T) {
	l, clock := newQueryFixture(t)
	ctx := context.Background()
	seedEvents(t, l, clock, "P-1", "SHIP", 6)
	seedEvents(t, l, clock, "P-1", "ARRIVE", 3)
	seedEvents(t, l, clock, "P-1", "INSPECT", 1)

	var sum uint64
	for _, typ := range []string{"SHIP", "ARRIVE", "INSPECT"} {
		page, err := l.EventsByType(ctx, "P-1", typ, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		sum += page.TotalCount
	}
	forward, err := l.ProductEvents(ctx, "P-1", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if sum != forward.TotalCount {
		t.Fatalf("type counts %d != forward total %d", sum, forward.TotalCount)
	}
}

func TestRecentEventsReverseOrder(t *testing.T) {
	l, clock := newQueryFixture(t)
	ctx := context.Background()
	ids := seedEvents(t, l, clock, "P-1", "SHIP", 5)

	page, err := l.RecentEvents(ctx, "P-1", 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 5 || !page.HasMore || len(page.Events) != 2 {
		t.Fatalf("unexpected recent page: %+v", page)
	}
	if page.Events[0].EventID != ids[4] || page.Events[1].EventID != ids[3] {
		t.Fatalf("recent order wrong: %d, %d", page.Events[0].EventID, page.Events[1].EventID)
	}

	page, err = l.RecentEvents(ctx, "P-1", 3, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.HasMore || len(page.Events) != 2 {
		t.Fatalf("unexpected tail page: %+v", page)
	}
	if page.Events[0].EventID != ids[1] || page.Events[1].EventID != ids[0] {
		t.Fatalf("tail order wrong: %d, %d", page.Events[0].EventID, page.Events[1].EventID)
	}
}

func TestEventsByTimeRange(t *testing.T) {
	l, clock := newQueryFixture(t)
	ctx := context.Background()
	// events at t0+1 .. t0+8
	ids := seedEvents(t, l, clock, "P-1", "SHIP", 8)
	t0 := int64(1_700_000_000)

	page, err := l.EventsByTimeRange(ctx, "P-1", t0+3, t0+6, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 4 || len(page.Events) != 4 {
		t.Fatalf("expected 4 events in range, got %+v", page)
	}
	if page.Events[0].EventID != ids[2] || page.Events[3].EventID != ids[5] {
		t.Fatalf("range bounds not inclusive: %#v", page.Events)
	}

	// open lower bound via the zero sentinel
	page, err = l.EventsByTimeRange(ctx, "P-1", NoStartTime, t0+2, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("expected 2 events up to t0+2, got %d", page.TotalCount)
	}

	// open upper bound via the max sentinel
	page, err = l.EventsByTimeRange(ctx, "P-1", t0+7, NoEndTime, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 2 {
		t.Fatalf("expected 2 events from t0+7, got %d", page.TotalCount)
	}

	// pagination applies after filtering
	page, err = l.EventsByTimeRange(ctx, "P-1", t0+1, t0+8, 6, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 8 || len(page.Events) != 2 || page.HasMore {
		t.Fatalf("unexpected paged range: %+v", page)
	}
}

func TestFilteredEventsComposite(t *testing.T) {
	clock := newStepClock(1_700_000_000)
	l := New(kv.NewMemory(), WithClock(clock.Now))
	ctx := context.Background()
	if _, err := l.RegisterProduct(ctx, "GADDR_A", testConfig("P-1")); err != nil {
		t.Fatal(err)
	}

	add := func(typ, loc string) uint64 {
		clock.Advance(time.Second)
		id, err := l.AddTrackingEvent(ctx, "GADDR_A", "P-1", EventInput{
			EventType: typ, Location: loc, DataHash: testHash,
		})
		if err != nil {
			t.Fatal(err)
		}
		return id
	}

	add("SHIP", "rotterdam")
	want := add("SHIP", "hamburg")
	add("ARRIVE", "hamburg")
	add("SHIP", "hamburg") // outside the time window below

	page, err := l.FilteredEvents(ctx, "P-1", EventFilter{
		EventType: "SHIP",
		Location:  "hamburg",
		StartTime: NoStartTime,
		EndTime:   1_700_000_003,
	}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.TotalCount != 1 || len(page.Events) != 1 || page.Events[0].EventID != want {
		t.Fatalf("composite filter wrong: %+v", page)
	}

	// fully unconstrained filter matches everything
	all, err := l.FilteredEvents(ctx, "P-1", EventFilter{StartTime: NoStartTime, EndTime: NoEndTime}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if all.TotalCount != 4 {
		t.Fatalf("unconstrained filter missed events: %+v", all)
	}
	if !(EventFilter{StartTime: NoStartTime, EndTime: NoEndTime}).Unconstrained() {
		t.Fatal("sentinel filter not reported unconstrained")
	}
}
