// Auth HTTP handlers.
//
// This file exposes the unauthenticated account endpoints:
//   - POST /auth/register  (create an account)
//   - POST /auth/login     (exchange credentials for a bearer token)
//
// Handlers are transport-thin: they validate input, call the user service,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-emoji-backend/internal/domain"
	"github.com/tbourn/go-emoji-backend/internal/services"
)

// UserService defines account operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type UserService interface {
	// Register creates an account with the USER role.
	Register(ctx context.Context, email, password string) (*domain.User, error)
	// Authenticate verifies credentials and returns a signed token.
	Authenticate(ctx context.Context, email, password string) (string, *domain.User, error)
	// Get returns an account visible to the caller.
	Get(ctx context.Context, caller services.Identity, id uint) (*domain.User, error)
	// UpdateRole assigns a new role (admin-gated upstream).
	UpdateRole(ctx context.Context, id uint, role domain.Role) error
}

// RegisterRequest is the JSON payload for account registration.
type RegisterRequest struct {
	Email    string `json:"email"    binding:"required,email" example:"jane@example.com"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the JSON payload for credential login.
type LoginRequest struct {
	Email    string `json:"email"    binding:"required,email" example:"jane@example.com"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued bearer token and the account.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Register godoc
// @ID          registerUser
// @Summary     Register a new account
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.RegisterRequest  true  "Registration payload"
// @Success     201  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Email already registered"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password (8-128 chars) required")
		return
	}

	u, err := h.userSvc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateEmail) {
			fail(c, http.StatusConflict, ErrCodeDuplicateEmail, "email already registered")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, u)
}

// Login godoc
// @ID          loginUser
// @Summary     Exchange credentials for a bearer token
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.LoginRequest  true  "Login payload"
// @Success     200  {object}  handlers.LoginResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid credentials"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email and password required")
		return
	}

	token, u, err := h.userSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid email or password")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, LoginResponse{Token: token, User: u})
}
