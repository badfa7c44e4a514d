package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSessionClosed is returned by writes on a closed session.
var ErrSessionClosed = errors.New("ws: session closed")

// Session is one live connection bound to an authenticated user.
type Session struct {
	UserID int64

	conn         *websocket.Conn
	hub          *Hub
	writeTimeout time.Duration

	mu        sync.Mutex // serializes data frames
	closeOnce sync.Once
	done      chan struct{}
}

func newSession(h *Hub, userID int64, conn *websocket.Conn, writeTimeout time.Duration) *Session {
	return &Session{
		UserID:       userID,
		conn:         conn,
		hub:          h,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// Write sends env as one text frame. A failed write closes the session.
func (s *Session) Write(env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		s.Close()
		return err
	}
	return nil
}

func (s *Session) ping() error {
	// control frames may be written concurrently with data frames
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout))
}

// Close tears the session down and drops it from the hub if it is still
// the registered one. Safe to call more than once.
func (s *Session) Close() {
	s.closeWith(websocket.CloseNormalClosure, "")
}

func (s *Session) closeWith(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		s.hub.Remove(s)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

// Done is closed once the session is torn down.
func (s *Session) Done() <-chan struct{} { return s.done }
