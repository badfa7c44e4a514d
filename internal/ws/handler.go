package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-im-core/internal/http/middleware"
)

// Config tunes the connection handler.
type Config struct {
	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration
	// PongWait is how long a silent peer is kept; pings go out at 9/10 of it.
	PongWait time.Duration
	// ReadLimit caps inbound frame size in bytes.
	ReadLimit int64
	// AllowedOrigins lists accepted Origin headers. Empty or "*" accepts any.
	AllowedOrigins []string
}

func (c Config) withDefaults() Config {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 8 * 1024
	}
	return c
}

// Handler upgrades authenticated requests and serves the session until the
// peer goes away. The bearer token comes from the "token" query parameter,
// or the Authorization header for non-browser clients.
func Handler(h *Hub, v middleware.TokenVerifier, cfg Config, log zerolog.Logger) gin.HandlerFunc {
	cfg = cfg.withDefaults()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}

	return func(c *gin.Context) {
		tok := c.Query("token")
		if tok == "" {
			tok = middleware.BearerToken(c)
		}
		if tok == "" {
			middleware.Unauthorized(c, "missing token")
			return
		}
		claims, err := v.Parse(tok)
		if err != nil {
			middleware.Unauthorized(c, "invalid token")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// the upgrader already wrote the HTTP error
			log.Debug().Err(err).Int64("user_id", claims.UserID).Msg("websocket upgrade failed")
			return
		}
		c.Set(middleware.UserIDKey, claims.UserID)

		s := newSession(h, claims.UserID, conn, cfg.WriteTimeout)
		if err := h.Put(s); err != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server shutting down"),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}
		log.Info().Int64("user_id", s.UserID).Int("online", h.Count()).Msg("session opened")

		_ = s.Write(h.Envelope(TypeSystem, 0, "connected"))
		go keepAlive(s, cfg.PongWait)
		serve(h, s, cfg, log)

		s.Close()
		log.Info().Int64("user_id", s.UserID).Msg("session closed")
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

func keepAlive(s *Session, pongWait time.Duration) {
	t := time.NewTicker(pongWait * 9 / 10)
	defer t.Stop()
	for {
		select {
		case <-s.Done():
			return
		case <-t.C:
			if err := s.ping(); err != nil {
				s.Close()
				return
			}
		}
	}
}

// serve reads frames until the connection fails.
func serve(h *Hub, s *Session, cfg Config, log zerolog.Logger) {
	s.conn.SetReadLimit(cfg.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		kind, payload, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, websocket.ErrCloseSent) {
				log.Debug().Err(err).Int64("user_id", s.UserID).Msg("read failed")
			}
			return
		}
		// any traffic proves the peer is alive
		_ = s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
		if kind != websocket.TextMessage {
			continue
		}
		handleFrame(h, s, payload, log)
	}
}

// handleFrame interprets one client frame. TYPING is forwarded to its
// receiver and HEARTBEAT answered; everything else is ignored.
func handleFrame(h *Hub, s *Session, payload []byte, log zerolog.Logger) {
	var in inbound
	if err := json.Unmarshal(payload, &in); err != nil {
		_ = s.Write(h.Envelope(TypeError, 0, "malformed message"))
		return
	}

	switch in.Type {
	case TypeTyping:
		if len(in.Data) == 0 {
			return
		}
		var d typingData
		if err := json.Unmarshal(in.Data, &d); err != nil {
			_ = s.Write(h.Envelope(TypeError, 0, "malformed message"))
			return
		}
		to := int64(d.ReceiverID)
		if to <= 0 || to == s.UserID {
			return
		}
		h.Send(to, h.Envelope(TypeTyping, s.UserID, nil))
	case TypeHeartbeat:
		_ = s.Write(Envelope{Type: TypeHeartbeat, Timestamp: time.Now().UTC(), Data: "pong"})
	default:
		log.Debug().Int64("user_id", s.UserID).Str("type", string(in.Type)).Msg("ignored frame")
	}
}
