// User HTTP handlers.
//
// This file exposes the authenticated account endpoints:
//   - GET /users/{id}       (admin or the account itself)
//   - PUT /users/{id}/role  (admin)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-emoji-backend/internal/domain"
	"github.com/tbourn/go-emoji-backend/internal/http/middleware"
	"github.com/tbourn/go-emoji-backend/internal/services"
)

// UpdateRoleRequest is the JSON payload for assigning a role.
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required" example:"ADMIN"`
}

// GetUser godoc
// @ID          getUser
// @Summary     Fetch an account
// @Tags        Users
// @Produce     json
// @Param       id  path  int  true  "User ID"
// @Success     200  {object}  domain.User
// @Failure     403  {object}  handlers.ErrorResponse "Not visible to caller"
// @Failure     404  {object}  handlers.ErrorResponse "User not found"
// @Router      /users/{id} [get]
func (h *Handlers) GetUser(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a positive integer")
		return
	}

	u, err := h.userSvc.Get(c.Request.Context(), middleware.IdentityFrom(c), id)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrForbidden):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "cannot read another user's account")
		case errors.Is(err, services.ErrUserNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateUserRole godoc
// @ID          updateUserRole
// @Summary     Assign a role to a user
// @Tags        Users
// @Accept      json
// @Produce     json
// @Param       id    path  int  true  "User ID"
// @Param       body  body  handlers.UpdateRoleRequest  true  "New role"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid role"
// @Failure     404  {object} handlers.ErrorResponse "User not found"
// @Router      /users/{id}/role [put]
func (h *Handlers) UpdateUserRole(c *gin.Context) {
	id, okID := pathID(c)
	if !okID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user id must be a positive integer")
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role required")
		return
	}

	if err := h.userSvc.UpdateRole(c.Request.Context(), id, domain.Role(req.Role)); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRole):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "role must be ADMIN or USER")
		case errors.Is(err, services.ErrUserNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}
