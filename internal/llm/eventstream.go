package llm

import (
	"context"
	"io"
	"sync"
)

// eventStream adapts a producer goroutine writing to a channel into the
// Stream interface. The producer returns when done (or on error); the
// channel is closed after the producer exits so Recv can report io.EOF.
type eventStream struct {
	events <-chan Event
	cancel context.CancelFunc

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// newEventStream runs produce in a goroutine and returns a Stream over the
// events it emits. Cancelling the stream's context stops the producer.
func newEventStream(ctx context.Context, produce func(ctx context.Context, events chan<- Event) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Event, 16)
	s := &eventStream{events: ch, cancel: cancel}

	go func() {
		defer close(ch)
		if err := produce(ctx, ch); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()

	return s
}

func (s *eventStream) Recv() (Event, error) {
	event, ok := <-s.events
	if !ok {
		s.mu.Lock()
		err := s.err
		s.mu.Unlock()
		if err != nil {
			return Event{}, err
		}
		return Event{}, io.EOF
	}
	return event, nil
}

func (s *eventStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		// Drain so the producer is never stuck on a send.
		go func() {
			for range s.events {
			}
		}()
	})
	return nil
}
