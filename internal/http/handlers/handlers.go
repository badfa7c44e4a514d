// Package handlers provides HTTP handler implementations for the public API.
//
// This file declares the service contracts consumed by the handlers, the
// Handlers wiring, and helpers shared by every endpoint (path ids,
// conditional responses).
package handlers

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zeebo/blake3"

	"github.com/tbourn/go-im-core/internal/domain"
	"github.com/tbourn/go-im-core/internal/services"
)

//
// Service contracts (context-aware)
//

// ApplyService covers the contact application lifecycle.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ApplyService interface {
	Propose(ctx context.Context, userID int64, targetName, description string) (*services.ProposeResult, error)
	Handle(ctx context.Context, handlerID, applyID int64, agree bool) (*services.HandleResult, error)
	ListReceived(ctx context.Context, userID int64) ([]services.ApplyView, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

// ContactService covers a user's contact list.
type ContactService interface {
	List(ctx context.Context, userID int64) ([]services.ContactView, error)
	UpdateRemark(ctx context.Context, userID, contactID int64, remark string) error
	Delete(ctx context.Context, userID, contactID int64) error
}

// UserService reads and updates profiles.
type UserService interface {
	Get(ctx context.Context, id int64) (*services.UserInfo, error)
	UpdateProfile(ctx context.Context, id int64, in services.ProfileInput) (*services.UserInfo, error)
}

// IdempotencyStore persists the outcome of requests carrying an
// Idempotency-Key. Lookup returns nil when no live record exists.
type IdempotencyStore interface {
	Lookup(ctx context.Context, userID int64, scope, key string, now time.Time) (*domain.Idempotency, error)
	Record(ctx context.Context, userID int64, scope, key string, resourceID int64, status int) error
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for applications, contacts and users.
type Handlers struct {
	applies  ApplyService
	contacts ContactService
	users    UserService
	idem     IdempotencyStore
}

// New constructs a Handlers bound to the given services. idem may be nil,
// which disables replay of Idempotency-Key requests.
func New(applies ApplyService, contacts ContactService, users UserService, idem IdempotencyStore) *Handlers {
	return &Handlers{applies: applies, contacts: contacts, users: users, idem: idem}
}

//
// Helpers
//

// pathID parses a positive int64 path parameter, failing the request otherwise.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// okWithETag writes body with a weak ETag over its JSON encoding and answers
// 304 when the client already holds that representation.
func okWithETag(c *gin.Context, scope string, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "encode response")
		return
	}
	sum := blake3.Sum256(b)
	etag := `W/"` + scope + ":" + hex.EncodeToString(sum[:8]) + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "private, no-cache")
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", b)
}
