// Package stream fan-outs tracking notices to live subscribers (SSE clients).
package stream

import (
	"context"
	"sync"

	"chainlogistics.org/internal/tracking"
)

// Stream delivers published notices to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan tracking.Notice
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{
		subs: make(map[int]chan tracking.Notice),
	}
}

// Subscribe registers a subscriber and returns a channel which will receive
// notices. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan tracking.Notice {
	ch := make(chan tracking.Notice, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the notice to all subscribers.
func (s *Stream) Publish(n tracking.Notice) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- n:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}
