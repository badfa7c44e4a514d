package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "github.com/tbourn/go-im-core/docs"
	"github.com/tbourn/go-im-core/internal/auth"
	"github.com/tbourn/go-im-core/internal/cache"
	"github.com/tbourn/go-im-core/internal/config"
	"github.com/tbourn/go-im-core/internal/domain"
	"github.com/tbourn/go-im-core/internal/http/middleware"
	"github.com/tbourn/go-im-core/internal/idgen"
	"github.com/tbourn/go-im-core/internal/lock"
	"github.com/tbourn/go-im-core/internal/repo"
	"github.com/tbourn/go-im-core/internal/services"
	"github.com/tbourn/go-im-core/internal/txn"
	"github.com/tbourn/go-im-core/internal/ws"
)

// --- full stack over pure-Go sqlite and miniredis ---

type stack struct {
	r   *gin.Engine
	db  *gorm.DB
	jwt *auth.JWT
	hub *ws.Hub
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   50,
		CORS:        config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		WS:          config.WSConfig{WriteTimeout: time.Second, PongWait: 5 * time.Second, ReadLimit: 4096},
	}
}

func newStack(t *testing.T, cfg config.Config) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	caches, err := services.NewCaches(cache.NewRedisStore(rdb), services.CacheConfig{
		UserTTL:     time.Minute,
		ContactsTTL: time.Minute,
		AppliesTTL:  time.Minute,
		NegativeTTL: 10 * time.Second,
	}, log)
	if err != nil {
		t.Fatalf("caches: %v", err)
	}

	hub := ws.NewHub(idgen.MustNew(1), log)
	t.Cleanup(hub.Close)

	d := services.Deps{
		Repo:           repo.Gorm{DB: db},
		UoW:            txn.New(db, log),
		Locker:         lock.NewRedisLocker(rdb, log, lock.WithRetryInterval(5*time.Millisecond)),
		Caches:         caches,
		Notifier:       ws.Notifier{Hub: hub},
		Log:            log,
		LockLease:      5 * time.Second,
		PairWait:       2 * time.Second,
		ApplyListLimit: 50,
	}
	jwt := auth.NewJWT("test-secret", "test", time.Hour)

	r := gin.New()
	RegisterRoutes(r, Deps{
		Applies:     services.NewApplyService(d),
		Contacts:    services.NewContactService(d),
		Users:       services.NewUserService(d),
		Idempotency: repo.IdempotencyStore{DB: db, TTL: time.Hour},
		Verifier:    jwt,
		Hub:         hub,
		Log:         log,
	}, cfg)
	return &stack{r: r, db: db, jwt: jwt, hub: hub}
}

func (s *stack) user(t *testing.T, username string) (*domain.User, string) {
	t.Helper()
	u := &domain.User{Username: username, Nickname: strings.ToUpper(username[:1]) + username[1:]}
	if err := s.db.Create(u).Error; err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	tok, err := s.jwt.Sign(u.ID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return u, tok
}

func (s *stack) call(t *testing.T, method, path, token, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

type wsFrame struct {
	Type      string          `json:"type"`
	MessageID string          `json:"messageId"`
	SenderID  int64           `json:"senderId"`
	Data      json.RawMessage `json:"data"`
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	var f wsFrame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// --- pipeline tests ---

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	s := newStack(t, testConfig())

	// /health works
	w := s.call(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"online":0`) {
		t.Fatalf("GET /health = %d %s", w.Code, w.Body.String())
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = s.call(t, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "ws_sessions_active") {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	if w := s.call(t, http.MethodGet, "/nope", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	if w := s.call(t, http.MethodPost, "/health", "", ""); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// swagger is off unless enabled
	if w := s.call(t, http.MethodGet, "/swagger/index.html", "", ""); w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	s := newStack(t, cfg)

	w := s.call(t, http.MethodGet, "/health", "", "", "Origin", "http://example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses otel + request id + security headers.
func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // enabled (but only set on https)
	s := newStack(t, cfg)

	w := s.call(t, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func TestRegisterRoutes_SwaggerWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	s := newStack(t, cfg)

	w := s.call(t, http.MethodGet, "/swagger/doc.json", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/contact-applies/{id}/handle") {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	s := newStack(t, testConfig())

	for _, tok := range []string{"", "garbage"} {
		w := s.call(t, http.MethodGet, "/api/v1/contacts", tok, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", tok, w.Code)
		}
	}
	if w := s.call(t, http.MethodGet, "/ws", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("ws without token: expected 401, got %d", w.Code)
	}
}

func TestAPI_GzipWhenAccepted(t *testing.T) {
	s := newStack(t, testConfig())
	_, tok := s.user(t, "alice")

	w := s.call(t, http.MethodGet, "/api/v1/contacts", tok, "", "Accept-Encoding", "gzip")
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, got %d %v", w.Code, w.Header())
	}
}

// --- end to end: propose, push, accept, reply ---

func TestEndToEnd_ProposeAcceptWithPushes(t *testing.T) {
	s := newStack(t, testConfig())
	alice, aliceTok := s.user(t, "alice")
	bob, bobTok := s.user(t, "bob")

	srv := httptest.NewServer(s.r)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token="

	dial := func(tok string) *websocket.Conn {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+tok, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		t.Cleanup(func() { _ = conn.Close() })
		if f := readFrame(t, conn); f.Type != string(ws.TypeSystem) {
			t.Fatalf("expected greeting, got %+v", f)
		}
		return conn
	}
	aliceWS := dial(aliceTok)
	bobWS := dial(bobTok)

	// alice proposes with an idempotency key
	w := s.call(t, http.MethodPost, "/api/v1/contact-applies", aliceTok,
		`{"targetName":" bob ","description":"hi bob"}`, middleware.HeaderIdempotencyKey, "req-1")
	if w.Code != http.StatusCreated {
		t.Fatalf("propose: %d %s", w.Code, w.Body.String())
	}
	var prop services.ProposeResult
	if err := json.Unmarshal(w.Body.Bytes(), &prop); err != nil || prop.ApplyID == 0 {
		t.Fatalf("propose body: %s", w.Body.String())
	}

	f := readFrame(t, bobWS)
	if f.Type != string(ws.TypeContactApply) || f.SenderID != alice.ID || f.MessageID == "" {
		t.Fatalf("unexpected apply push: %+v", f)
	}
	var notice services.ApplyNotice
	if err := json.Unmarshal(f.Data, &notice); err != nil || notice.ApplyID != prop.ApplyID || notice.Nickname != "Alice" {
		t.Fatalf("unexpected notice: %s", f.Data)
	}

	// a retry with the same key replays instead of proposing again
	w = s.call(t, http.MethodPost, "/api/v1/contact-applies", aliceTok,
		`{"targetName":"bob"}`, middleware.HeaderIdempotencyKey, "req-1")
	if w.Code != http.StatusOK || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay: %d %v", w.Code, w.Header())
	}

	// bob sees it as unread and in his list
	w = s.call(t, http.MethodGet, "/api/v1/contact-applies/unread-count", bobTok, "")
	if strings.TrimSpace(w.Body.String()) != `{"count":1}` {
		t.Fatalf("unread: %s", w.Body.String())
	}
	w = s.call(t, http.MethodGet, "/api/v1/contact-applies", bobTok, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"nickname":"Alice"`) {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	if w := s.call(t, http.MethodGet, "/api/v1/contact-applies", bobTok, "", "If-None-Match", w.Header().Get("ETag")); w.Code != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", w.Code)
	}

	// alice cannot handle her own application
	path := fmt.Sprintf("/api/v1/contact-applies/%d/handle", prop.ApplyID)
	if w := s.call(t, http.MethodPost, path, aliceTok, `{"agree":true}`); w.Code != http.StatusForbidden {
		t.Fatalf("proposer handling: expected 403, got %d", w.Code)
	}

	w = s.call(t, http.MethodPost, path, bobTok, `{"agree":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", w.Code, w.Body.String())
	}
	var hr services.HandleResult
	if err := json.Unmarshal(w.Body.Bytes(), &hr); err != nil || hr.Status != domain.ApplyAccepted || hr.ConversationID == 0 {
		t.Fatalf("accept body: %s", w.Body.String())
	}

	f = readFrame(t, aliceWS)
	if f.Type != string(ws.TypeContactReply) || f.SenderID != bob.ID {
		t.Fatalf("unexpected reply push: %+v", f)
	}
	var reply services.ReplyNotice
	if err := json.Unmarshal(f.Data, &reply); err != nil || !reply.Agree || reply.ConversationID != hr.ConversationID {
		t.Fatalf("unexpected reply: %s", f.Data)
	}

	// handling again is rejected
	w = s.call(t, http.MethodPost, path, bobTok, `{"agree":false}`)
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), `"already_handled"`) {
		t.Fatalf("second handle: %d %s", w.Code, w.Body.String())
	}

	// both sides list each other
	for _, tc := range []struct {
		tok    string
		friend int64
	}{{aliceTok, bob.ID}, {bobTok, alice.ID}} {
		w := s.call(t, http.MethodGet, "/api/v1/contacts", tc.tok, "")
		var lr struct {
			Contacts []services.ContactView `json:"contacts"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &lr); err != nil || len(lr.Contacts) != 1 || lr.Contacts[0].FriendID != tc.friend {
			t.Fatalf("contacts: %s", w.Body.String())
		}
	}

	// proposing to an existing contact conflicts
	w = s.call(t, http.MethodPost, "/api/v1/contact-applies", aliceTok, `{"targetName":"bob"}`)
	if w.Code != http.StatusConflict || !strings.Contains(w.Body.String(), `"already_exists"`) {
		t.Fatalf("existing contact: %d %s", w.Code, w.Body.String())
	}
}

func TestEndToEnd_ProfileAndContactEdits(t *testing.T) {
	s := newStack(t, testConfig())
	alice, aliceTok := s.user(t, "alice")
	_, bobTok := s.user(t, "bob")

	w := s.call(t, http.MethodPut, "/api/v1/users/me", aliceTok, `{"nickname":"  Ally  ","bio":"climber"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"nickname":"Ally"`) {
		t.Fatalf("update profile: %d %s", w.Code, w.Body.String())
	}
	w = s.call(t, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", alice.ID), bobTok, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"bio":"climber"`) {
		t.Fatalf("get user: %d %s", w.Code, w.Body.String())
	}
	if w := s.call(t, http.MethodGet, "/api/v1/users/999", bobTok, ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown user: expected 404, got %d", w.Code)
	}

	if w := s.call(t, http.MethodPost, "/api/v1/contact-applies", aliceTok, `{"targetName":"nobody"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown target: expected 404, got %d", w.Code)
	}
	if w := s.call(t, http.MethodPost, "/api/v1/contact-applies", aliceTok, `{"targetName":"alice"}`); w.Code != http.StatusForbidden {
		t.Fatalf("self apply: expected 403, got %d", w.Code)
	}

	// reject path, then read-all
	w = s.call(t, http.MethodPost, "/api/v1/contact-applies", aliceTok, `{"targetName":"bob"}`)
	var prop services.ProposeResult
	if err := json.Unmarshal(w.Body.Bytes(), &prop); err != nil {
		t.Fatalf("propose: %s", w.Body.String())
	}
	w = s.call(t, http.MethodPut, "/api/v1/contact-applies/read-all", bobTok, "")
	if strings.TrimSpace(w.Body.String()) != `{"count":1}` {
		t.Fatalf("read-all: %s", w.Body.String())
	}
	w = s.call(t, http.MethodPost, fmt.Sprintf("/api/v1/contact-applies/%d/handle", prop.ApplyID), bobTok, `{"agree":false}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), fmt.Sprintf(`"status":%d`, domain.ApplyRejected)) {
		t.Fatalf("reject: %d %s", w.Code, w.Body.String())
	}

	if w := s.call(t, http.MethodDelete, "/api/v1/contacts/12345", aliceTok, ""); w.Code != http.StatusNotFound {
		t.Fatalf("delete unknown contact: expected 404, got %d", w.Code)
	}
}
