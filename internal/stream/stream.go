package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"gigshield.org/internal/events"
)

// Stream fan-outs committed events to all active subscribers (SSE clients).
type Stream struct {
	mu      sync.RWMutex
	subs    map[int]chan events.Event
	next    int
	dropped atomic.Uint64
}

func New() *Stream {
	return &Stream{subs: make(map[int]chan events.Event)}
}

// Subscribe registers a subscriber and returns a channel which will receive events.
// The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan events.Event {
	ch := make(chan events.Event, 16)

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

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(_ context.Context, evt events.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
			s.dropped.Add(1)
		}
	}
	return nil
}

// Subscribers reports the number of live subscriptions.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dropped reports how many deliveries were skipped for slow subscribers.
func (s *Stream) Dropped() uint64 { return s.dropped.Load() }
