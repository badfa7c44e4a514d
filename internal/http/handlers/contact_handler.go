// Contact HTTP handlers.
//
//   - GET    /contacts       (list, ETag support)
//   - PUT    /contacts/{id}  (update remark)
//   - DELETE /contacts/{id}  (remove from the caller's list)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-im-core/internal/http/middleware"
	"github.com/tbourn/go-im-core/internal/services"
)

// ListContactsResponse wraps the caller's contacts.
type ListContactsResponse struct {
	Contacts []services.ContactView `json:"contacts"`
}

// UpdateContactRequest is the JSON payload for changing a contact's remark.
// An empty remark clears it.
type UpdateContactRequest struct {
	Remark string `json:"remark" binding:"max=64" example:"Bob (climbing)"`
}

// ListContacts godoc
// @ID          listContacts
// @Summary     List contacts
// @Description Returns the caller's contacts with their current profile. Supports weak ETag via
// @Description If-None-Match and may return 304.
// @Tags        Contacts
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object} handlers.ListContactsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts [get]
func (h *Handlers) ListContacts(c *gin.Context) {
	items, err := h.contacts.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		failErr(c, err)
		return
	}
	if items == nil {
		items = []services.ContactView{}
	}
	okWithETag(c, "contacts", ListContactsResponse{Contacts: items})
}

// UpdateContact godoc
// @ID          updateContact
// @Summary     Update a contact's remark
// @Tags        Contacts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  int  true  "Contact ID"  minimum(1)
// @Param       body  body  handlers.UpdateContactRequest  true  "New remark"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not your contact"
// @Failure     404  {object} handlers.ErrorResponse "Contact not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts/{id} [put]
func (h *Handlers) UpdateContact(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req UpdateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "remark must be at most 64 chars")
		return
	}
	if err := h.contacts.UpdateRemark(c.Request.Context(), middleware.UserID(c), id, req.Remark); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// DeleteContact godoc
// @ID          deleteContact
// @Summary     Delete a contact
// @Description Removes the contact from the caller's list and leaves the private conversation.
// @Description The peer's row is untouched.
// @Tags        Contacts
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  int  true  "Contact ID"  minimum(1)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     403  {object} handlers.ErrorResponse "Not your contact"
// @Failure     404  {object} handlers.ErrorResponse "Contact not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /contacts/{id} [delete]
func (h *Handlers) DeleteContact(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.contacts.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
