package stream

import (
	"context"
	"io"
	"sync"

	"github.com/nadscan/tradeledger/internal/domain/event"
)

// MemoryStream is an in-process event source for tests and local runs. It
// hands events out in publish order; Close drains the stream so readers see
// io.EOF once everything published has been consumed.
type MemoryStream struct {
	mu     sync.Mutex
	ch     chan event.Event
	closed bool
}

func NewMemoryStream(buffer int) *MemoryStream {
	return &MemoryStream{ch: make(chan event.Event, buffer)}
}

func (s *MemoryStream) Publish(ev event.Event) {
	s.ch <- ev
}

func (s *MemoryStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *MemoryStream) Next(ctx context.Context) (event.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return ev, nil
	}
}
