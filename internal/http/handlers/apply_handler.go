// Contact application HTTP handlers.
//
// This file exposes REST endpoints for contact applications:
//   - POST /contact-applies               (propose)
//   - GET  /contact-applies               (received, ETag support)
//   - POST /contact-applies/{id}/handle   (accept or reject)
//   - GET  /contact-applies/unread-count  (unread received)
//   - PUT  /contact-applies/read-all      (mark received as read)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// proposal exists for (user, "contact_apply", key), the handler returns the
// recorded apply id and sets `Idempotency-Replayed: true`.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-im-core/internal/http/middleware"
	"github.com/tbourn/go-im-core/internal/services"
)

// ProposeScope is the idempotency scope of POST /contact-applies.
const ProposeScope = "contact_apply"

//
// DTOs
//

// ProposeRequest is the JSON payload for sending a contact application.
type ProposeRequest struct {
	// TargetName is the username of the user to add.
	TargetName string `json:"targetName" binding:"required,max=64" example:"bob"`
	// Description is an optional greeting shown to the recipient.
	Description string `json:"description" binding:"max=255" example:"hi, it's Alice from the meetup"`
}

// ReplayedProposal is returned when an Idempotency-Key replays a proposal.
type ReplayedProposal struct {
	ApplyID  int64 `json:"applyId"`
	Replayed bool  `json:"replayed"`
}

// HandleRequest is the JSON payload for accepting or rejecting an application.
type HandleRequest struct {
	Agree *bool `json:"agree" binding:"required" example:"true"`
}

// ListAppliesResponse wraps the received applications.
type ListAppliesResponse struct {
	Applies []services.ApplyView `json:"applies"`
}

// CountResponse carries a single counter.
type CountResponse struct {
	Count int64 `json:"count"`
}

//
// Handlers
//

// ProposeContact godoc
// @ID          proposeContact
// @Summary     Send a contact application
// @Description Sends a contact application to the user named targetName. If that user already has a
// @Description pending application to the caller, it is accepted instead (collapsed=true).
// @Description Supports idempotency via the Idempotency-Key header (same key → same apply).
// @Tags        ContactApplies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.ProposeRequest  true  "Application payload"
//
// @Success     201  {object}  services.ProposeResult     "Application created or collapsed"
// @Success     200  {object}  handlers.ReplayedProposal  "Replayed by Idempotency-Key"
// @Failure     400  {object}  handlers.ErrorResponse     "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse     "Cannot add yourself"
// @Failure     404  {object}  handlers.ErrorResponse     "User not found"
// @Failure     409  {object}  handlers.ErrorResponse     "Already in contacts"
// @Failure     429  {object}  handlers.ErrorResponse     "Too busy"
// @Failure     500  {object}  handlers.ErrorResponse     "Internal error"
// @Router      /contact-applies [post]
func (h *Handlers) ProposeContact(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)

	var req ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.TargetName) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "targetName required (1-64 chars)")
		return
	}

	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" && h.idem != nil {
		if rec, err := h.idem.Lookup(ctx, uid, ProposeScope, idemKey, time.Now().UTC()); err == nil && rec != nil {
			c.Header("Idempotency-Replayed", "true")
			ok(c, http.StatusOK, ReplayedProposal{ApplyID: rec.ResourceID, Replayed: true})
			return
		}
	}

	res, err := h.applies.Propose(ctx, uid, req.TargetName, req.Description)
	if err != nil {
		failErr(c, err)
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && h.idem != nil {
		if err := h.idem.Record(ctx, uid, ProposeScope, idemKey, res.ApplyID, http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency record failed")
		}
	}

	ok(c, http.StatusCreated, res)
}

// ListApplies godoc
// @ID          listApplies
// @Summary     List received contact applications
// @Description Returns the applications addressed to the caller, newest first. Supports weak ETag via
// @Description If-None-Match and may return 304.
// @Tags        ContactApplies
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"applies:3f2a9c0d1e4b5a6f\")
//
// @Success     200  {object} handlers.ListAppliesResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contact-applies [get]
func (h *Handlers) ListApplies(c *gin.Context) {
	items, err := h.applies.ListReceived(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []services.ApplyView{}
	}
	okWithETag(c, "applies", ListAppliesResponse{Applies: items})
}

// HandleApply godoc
// @ID          handleApply
// @Summary     Accept or reject a contact application
// @Description Accepting creates the contact pair and their private conversation; the proposer is
// @Description notified in both cases.
// @Tags        ContactApplies
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  int  true  "Apply ID"  minimum(1)
// @Param       body  body  handlers.HandleRequest  true  "Decision"
//
// @Success     200  {object} services.HandleResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not the recipient"
// @Failure     404  {object} handlers.ErrorResponse "Application not found"
// @Failure     409  {object} handlers.ErrorResponse "Already handled"
// @Failure     429  {object} handlers.ErrorResponse "Too busy"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contact-applies/{id}/handle [post]
func (h *Handlers) HandleApply(c *gin.Context) {
	applyID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req HandleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Agree == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "agree required")
		return
	}

	res, err := h.applies.Handle(c.Request.Context(), middleware.UserID(c), applyID, *req.Agree)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// UnreadApplies godoc
// @ID          unreadApplies
// @Summary     Count unread contact applications
// @Tags        ContactApplies
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.CountResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contact-applies/unread-count [get]
func (h *Handlers) UnreadApplies(c *gin.Context) {
	n, err := h.applies.UnreadCount(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}

// ReadAllApplies godoc
// @ID          readAllApplies
// @Summary     Mark every received application as read
// @Tags        ContactApplies
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.CountResponse "Rows updated"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contact-applies/read-all [put]
func (h *Handlers) ReadAllApplies(c *gin.Context) {
	n, err := h.applies.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, CountResponse{Count: n})
}
