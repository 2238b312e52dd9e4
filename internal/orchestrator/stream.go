package orchestrator

import (
	"context"
	"sync"

	"quizforge/internal/domain"
)

// subscriberBuffer is the channel depth handed to each subscriber. The
// pump goroutine reads from the backlog by cursor, so a slow consumer
// only stalls its own channel, never the producers.
const subscriberBuffer = 16

// Stream is the per-run append-only progress log with replay-capable
// fan-out. Appends are serialized per run; subscribers replay the full
// backlog before live events. Nothing is dropped while the run is
// Running; the whole log is released when the run is evicted.
type Stream struct {
	runID string

	mu     sync.Mutex
	cond   *sync.Cond
	events []domain.ProgressEvent
	closed bool
}

func newStream(runID string) *Stream {
	s := &Stream{runID: runID}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Append adds one event to the log and wakes subscribers. It never
// blocks on consumers.
func (s *Stream) Append(ev domain.ProgressEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Close marks the log complete. Subscribers drain the backlog and their
// channels close. Append after Close is a no-op.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Len returns the number of events appended so far.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Events returns a snapshot of the backlog.
func (s *Stream) Events() []domain.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ProgressEvent(nil), s.events...)
}

// Subscribe returns a channel that replays every event since run start
// and then follows live appends. The channel closes once the terminal
// event has been delivered, or when ctx is cancelled. Two subscribers
// to the same stream observe identical event sequences.
func (s *Stream) Subscribe(ctx context.Context) <-chan domain.ProgressEvent {
	out := make(chan domain.ProgressEvent, subscriberBuffer)

	// Unblock the pump's cond.Wait when the subscriber goes away. The
	// stream always closes at run terminal, so this watcher is bounded
	// by the run lifetime.
	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			s.cond.Broadcast()
		}()
	}

	go func() {
		defer close(out)
		cursor := 0
		for {
			s.mu.Lock()
			for cursor >= len(s.events) && !s.closed && ctx.Err() == nil {
				s.cond.Wait()
			}
			if ctx.Err() != nil || (cursor >= len(s.events) && s.closed) {
				s.mu.Unlock()
				return
			}
			ev := s.events[cursor]
			cursor++
			s.mu.Unlock()

			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
