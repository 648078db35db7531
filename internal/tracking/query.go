package tracking

import (
	"context"

	"chainlogistics.org/internal/kv"
)

// Pagination contract shared by all event queries: out-of-range offsets are
// not an error, they return an empty page with HasMore false; HasMore is true
// exactly when offset + len(items) < total.

func hasMore(offset, returned, total uint64) bool {
	return offset+returned < total
}

// pageBounds clips [offset, offset+limit) to total. ok is false when the
// window is empty.
func pageBounds(offset, limit, total uint64) (start, end uint64, ok bool) {
	if offset >= total || limit == 0 {
		return 0, 0, false
	}
	end = offset + limit
	if end > total || end < offset { // second clause guards overflow
		end = total
	}
	return offset, end, true
}

// ProductEvents pages through the forward index in append order. The page is
// a direct slice of the index, O(limit) regardless of history size.
func (l *Ledger) ProductEvents(ctx context.Context, id string, offset, limit uint64) (EventPage, error) {
	var page EventPage
	err := l.store.View(ctx, func(tx kv.Tx) error {
		if _, err := readProduct(tx, id); err != nil {
			return err
		}
		ids, err := readEventIDs(tx, id)
		if err != nil {
			return err
		}
		total := uint64(len(ids))
		page = EventPage{TotalCount: total, Events: []TrackingEvent{}}
		start, end, ok := pageBounds(offset, limit, total)
		if ok {
			page.Events, err = loadEvents(tx, ids[start:end])
			if err != nil {
				return err
			}
		}
		page.HasMore = hasMore(offset, uint64(len(page.Events)), total)
		return nil
	})
	if err != nil {
		return EventPage{}, err
	}
	return page, nil
}

// RecentEvents is the forward index read back to front: offset 0 is the most
// recent event.
func (l *Ledger) RecentEvents(ctx context.Context, id string, offset, limit uint64) (EventPage, error) {
	var page EventPage
	err := l.store.View(ctx, func(tx kv.Tx) error {
		if _, err := readProduct(tx, id); err != nil {
			return err
		}
		ids, err := readEventIDs(tx, id)
		if err != nil {
			return err
		}
		total := uint64(len(ids))
		page = EventPage{TotalCount: total, Events: []TrackingEvent{}}
		start, end, ok := pageBounds(offset, limit, total)
		if ok {
			reversed := make([]uint64, 0, end-start)
			for i := start; i < end; i++ {
				reversed = append(reversed, ids[total-1-i])
			}
			page.Events, err = loadEvents(tx, reversed)
			if err != nil {
				return err
			}
		}
		page.HasMore = hasMore(offset, uint64(len(page.Events)), total)
		return nil
	})
	if err != nil {
		return EventPage{}, err
	}
	return page, nil
}

// EventsByType pages through the dense per-(product,type) positional index,
// O(limit) and independent of how many events other types hold.
func (l *Ledger) EventsByType(ctx context.Context, id, eventType string, offset, limit uint64) (EventPage, error) {
	var page EventPage
	err := l.store.View(ctx, func(tx kv.Tx) error {
		if _, err := readProduct(tx, id); err != nil {
			return err
		}
		total, err := readCounter(tx, typeCountKey(id, eventType))
		if err != nil {
			return err
		}
		page = EventPage{TotalCount: total, Events: []TrackingEvent{}}
		start, end, ok := pageBounds(offset, limit, total)
		if ok {
			// positions are 1-based
			for pos := start + 1; pos <= end; pos++ {
				var eventID uint64
				found, err := getJSON(tx, typeIndexKey(id, eventType, pos), &eventID)
				if err != nil {
					return err
				}
				if !found {
					return ErrEventNotFound
				}
				ev, err := loadEvent(tx, eventID)
				if err != nil {
					return err
				}
				page.Events = append(page.Events, ev)
			}
		}
		page.HasMore = hasMore(offset, uint64(len(page.Events)), total)
		return nil
	})
	if err != nil {
		return EventPage{}, err
	}
	return page, nil
}

// EventsByTimeRange filters the whole forward index by inclusive timestamp
// bounds before paginating. No time-bucketed index is kept, so this is the
// one query that is linear in the product's event count.
func (l *Ledger) EventsByTimeRange(ctx context.Context, id string, start, end int64, offset, limit uint64) (EventPage, error) {
	return l.FilteredEvents(ctx, id, EventFilter{StartTime: start, EndTime: end}, offset, limit)
}

// FilteredEvents applies a composite filter (type, time range, location) by
// scanning the forward index, then paginates the matches. Sentinel values
// (empty strings, NoStartTime, NoEndTime) leave a dimension unconstrained.
func (l *Ledger) FilteredEvents(ctx context.Context, id string, f EventFilter, offset, limit uint64) (EventPage, error) {
	var page EventPage
	err := l.store.View(ctx, func(tx kv.Tx) error {
		if _, err := readProduct(tx, id); err != nil {
			return err
		}
		ids, err := readEventIDs(tx, id)
		if err != nil {
			return err
		}
		matched := make([]TrackingEvent, 0, len(ids))
		for _, eventID := range ids {
			ev, err := loadEvent(tx, eventID)
			if err != nil {
				return err
			}
			if f.Matches(ev) {
				matched = append(matched, ev)
			}
		}
		total := uint64(len(matched))
		page = EventPage{TotalCount: total, Events: []TrackingEvent{}}
		if start, end, ok := pageBounds(offset, limit, total); ok {
			page.Events = append(page.Events, matched[start:end]...)
		}
		page.HasMore = hasMore(offset, uint64(len(page.Events)), total)
		return nil
	})
	if err != nil {
		return EventPage{}, err
	}
	return page, nil
}

func loadEvent(tx kv.Tx, eventID uint64) (TrackingEvent, error) {
	var ev TrackingEvent
	found, err := getJSON(tx, eventKey(eventID), &ev)
	if err != nil {
		return TrackingEvent{}, err
	}
	if !found {
		return TrackingEvent{}, ErrEventNotFound
	}
	return ev, nil
}

func loadEvents(tx kv.Tx, ids []uint64) ([]TrackingEvent, error) {
	events := make([]TrackingEvent, 0, len(ids))
	for _, id := range ids {
		ev, err := loadEvent(tx, id)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}
