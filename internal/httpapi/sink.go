package httpapi

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/quarrylabs/inquest/internal/events"
)

// socketSink writes events to one websocket connection. A mutex serializes
// writes, and the first failed write latches the sink closed so the pipeline
// stops issuing generation calls for a peer that is gone.
type socketSink struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newSocketSink(conn *websocket.Conn) *socketSink {
	return &socketSink{conn: conn}
}

func (s *socketSink) Send(ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return events.ErrSinkClosed
	}
	if err := s.conn.WriteJSON(ev); err != nil {
		s.closed = true
		return fmt.Errorf("%w: %v", events.ErrSinkClosed, err)
	}
	return nil
}
