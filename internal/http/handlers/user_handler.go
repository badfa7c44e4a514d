// User HTTP handlers.
//
//   - GET /users/{id}  (public profile, cached)
//   - PUT /users/me    (update the caller's profile)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-im-core/internal/http/middleware"
	"github.com/tbourn/go-im-core/internal/services"
)

// UpdateProfileRequest is the JSON payload for PUT /users/me. Absent fields
// are left unchanged.
type UpdateProfileRequest struct {
	Nickname *string `json:"nickname" binding:"omitempty,max=64" example:"Alice"`
	Avatar   *string `json:"avatar"   binding:"omitempty,max=512" example:"https://cdn.example/a.png"`
	Gender   *int8   `json:"gender"   binding:"omitempty,min=0,max=2" example:"1"`
	Bio      *string `json:"bio"      binding:"omitempty,max=255" example:"climber"`
}

// GetUser godoc
// @ID          getUser
// @Summary     Get a user's profile
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  int  true  "User ID"  minimum(1)
//
// @Success     200  {object} services.UserInfo
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Update the caller's profile
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.UpdateProfileRequest  true  "Profile changes"
//
// @Success     200  {object} services.UserInfo
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /users/me [put]
func (h *Handlers) UpdateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid profile")
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), middleware.UserID(c), services.ProfileInput{
		Nickname: req.Nickname,
		Avatar:   req.Avatar,
		Gender:   req.Gender,
		Bio:      req.Bio,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, u)
}
