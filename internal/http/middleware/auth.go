// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication and role gating. Auth
// validates the Authorization header, resolves the caller identity from the
// JWT, and stores it in the Gin context; RequireAdmin gates administrative
// routes on the ADMIN capability.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-emoji-backend/internal/domain"
	"github.com/tbourn/go-emoji-backend/internal/services"
)

const (
	// ctxKeyUserID holds the authenticated numeric user id (uint).
	ctxKeyUserID = "userID"
	// ctxKeyUserRole holds the authenticated role (string).
	ctxKeyUserRole = "userRole"
)

// TokenParser validates a bearer token and reconstructs the caller identity.
// *services.UserService satisfies this.
type TokenParser interface {
	ParseToken(token string) (services.Identity, error)
}

// Auth returns a middleware that requires a valid "Bearer <token>"
// Authorization header and stashes the resulting identity in the context.
// Requests without a valid token are rejected with 401.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")
		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			unauthorized(c, "missing or malformed Authorization header")
			return
		}

		id, err := parser.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			unauthorized(c, "invalid or expired token")
			return
		}

		c.Set(ctxKeyUserID, id.UserID)
		c.Set(ctxKeyUserRole, string(id.Role))
		c.Next()
	}
}

// RequireAdmin gates a route on the ADMIN capability. It must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IdentityFrom(c).Role != domain.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "forbidden",
				"message":    "admin capability required",
			})
			return
		}
		c.Next()
	}
}

// UserIDFrom returns the authenticated user id, or 0 when unauthenticated.
func UserIDFrom(c *gin.Context) uint {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

// IdentityFrom reconstructs the caller identity stored by Auth. The zero
// Identity (UserID 0, empty role) is returned for unauthenticated requests.
func IdentityFrom(c *gin.Context) services.Identity {
	id := services.Identity{UserID: UserIDFrom(c)}
	if v, ok := c.Get(ctxKeyUserRole); ok {
		if s, ok := v.(string); ok {
			id.Role = domain.Role(s)
		}
	}
	return id
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       "unauthorized",
		"message":    msg,
	})
}
