package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_sessions_active",
		Help: "Registered WebSocket sessions.",
	})
	framesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_frames_sent_total",
			Help: "Envelopes pushed to users by type and result (sent, offline, failed).",
		},
		[]string{"type", "result"},
	)
)

func init() {
	prometheus.MustRegister(sessionsActive, framesSent)
}

// ErrHubClosed is returned by Put after Close.
var ErrHubClosed = errors.New("ws: hub closed")

// IDSource mints message ids. *idgen.Generator satisfies it.
type IDSource interface {
	NextID() (uint64, error)
}

// Hub maps user ids to their live session. It holds at most one session per
// user; the latest connection wins. It is process-local: a user connected to
// another instance is offline here.
type Hub struct {
	ids IDSource
	log zerolog.Logger

	mu       sync.RWMutex
	sessions map[int64]*Session
	closed   bool
}

func NewHub(ids IDSource, log zerolog.Logger) *Hub {
	return &Hub{
		ids:      ids,
		log:      log.With().Str("component", "ws").Logger(),
		sessions: make(map[int64]*Session),
	}
}

// Put registers s, closing any session it replaces.
func (h *Hub) Put(s *Session) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	old := h.sessions[s.UserID]
	h.sessions[s.UserID] = s
	sessionsActive.Set(float64(len(h.sessions)))
	h.mu.Unlock()

	if old != nil && old != s {
		h.log.Info().Int64("user_id", s.UserID).Msg("session replaced by a newer connection")
		old.closeWith(websocket.ClosePolicyViolation, "replaced by a newer connection")
	}
	return nil
}

// Remove unregisters s if it is still the session of its user.
func (h *Hub) Remove(s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.sessions[s.UserID]; !ok || cur != s {
		return false
	}
	delete(h.sessions, s.UserID)
	sessionsActive.Set(float64(len(h.sessions)))
	return true
}

// Get returns the live session of userID.
func (h *Hub) Get(userID int64) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[userID]
	return s, ok
}

// Count returns the number of registered sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Send pushes env to userID and reports whether it was written. Offline
// users are skipped; a failed write closes their session. It never retries.
func (h *Hub) Send(userID int64, env Envelope) bool {
	s, ok := h.Get(userID)
	if !ok {
		framesSent.WithLabelValues(string(env.Type), "offline").Inc()
		return false
	}
	if err := s.Write(env); err != nil {
		framesSent.WithLabelValues(string(env.Type), "failed").Inc()
		h.log.Warn().Err(err).Int64("user_id", userID).Str("type", string(env.Type)).Msg("push failed, session dropped")
		return false
	}
	framesSent.WithLabelValues(string(env.Type), "sent").Inc()
	return true
}

// Envelope builds a frame carrying a fresh message id. If no id can be
// minted the frame goes out without one.
func (h *Hub) Envelope(t Type, senderID int64, data any) Envelope {
	env := Envelope{Type: t, SenderID: senderID, Timestamp: time.Now().UTC(), Data: data}
	id, err := h.ids.NextID()
	if err != nil {
		h.log.Error().Err(err).Str("type", string(t)).Msg("message id unavailable")
		return env
	}
	env.MessageID = &id
	return env
}

// Close closes every session and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	all := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		all = append(all, s)
	}
	h.mu.Unlock()

	for _, s := range all {
		s.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
}
