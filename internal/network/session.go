package network

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection timing.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// session is one subscribed websocket client. Packets are queued by the
// scene listener and written by the session's own goroutine.
type session struct {
	id   uint64
	conn *websocket.Conn

	mu     sync.Mutex
	queue  [][]byte
	closed bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(id uint64, conn *websocket.Conn) *session {
	return &session{
		id:     id,
		conn:   conn,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// enqueue appends data to the send queue. It reports false when the session
// is closed or more than limit packets are waiting; limit <= 0 means no limit.
func (s *session) enqueue(data []byte, limit int) bool {
	s.mu.Lock()
	if s.closed || (limit > 0 && len(s.queue) >= limit) {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, data)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return true
}

func (s *session) drain() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.queue
	s.queue = nil
	return out
}

// writeLoop sends queued packets and keepalive pings until the session closes.
func (s *session) writeLoop() error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.notify:
			for _, data := range s.drain() {
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
					return err
				}
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			return s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}
	}
}

// readLoop discards client messages and returns when the connection fails.
func (s *session) readLoop() error {
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
	})
}
