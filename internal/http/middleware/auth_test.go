package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-emoji-backend/internal/domain"
	"github.com/tbourn/go-emoji-backend/internal/services"
)

// stubParser accepts exactly one token string.
type stubParser struct {
	accept string
	id     services.Identity
}

func (p stubParser) ParseToken(token string) (services.Identity, error) {
	if token == p.accept {
		return p.id, nil
	}
	return services.Identity{}, errors.New("bad token")
}

func authEngine(parser TokenParser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(parser))
	r.GET("/whoami", func(c *gin.Context) {
		id := IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": string(id.Role)})
	})
	return r
}

func TestAuth_ValidToken_SetsIdentity(t *testing.T) {
	r := authEngine(stubParser{accept: "good", id: services.Identity{UserID: 7, Role: domain.RoleAdmin}})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != `{"role":"ADMIN","user_id":7}` {
		t.Fatalf("body = %s", got)
	}
}

func TestAuth_Rejections(t *testing.T) {
	r := authEngine(stubParser{accept: "good"})

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"empty token", "Bearer   "},
		{"invalid token", "Bearer bad"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d", w.Code)
			}
			if w.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Fatalf("missing WWW-Authenticate header")
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	newEngine := func(role domain.Role) *gin.Engine {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			c.Set(ctxKeyUserID, uint(1))
			c.Set(ctxKeyUserRole, string(role))
		})
		r.Use(RequireAdmin())
		r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	w := httptest.NewRecorder()
	newEngine(domain.RoleAdmin).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	newEngine(domain.RoleUser).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("user status = %d", w.Code)
	}
}

func TestUserIDFrom_And_IdentityFrom_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if got := UserIDFrom(c); got != 0 {
		t.Fatalf("unauthenticated UserIDFrom = %d", got)
	}
	if id := IdentityFrom(c); id.UserID != 0 || id.Role != "" {
		t.Fatalf("unauthenticated IdentityFrom = %+v", id)
	}

	c.Set(ctxKeyUserID, uint(9))
	c.Set(ctxKeyUserRole, "USER")
	if got := UserIDFrom(c); got != 9 {
		t.Fatalf("UserIDFrom = %d", got)
	}
	if id := IdentityFrom(c); id.UserID != 9 || id.Role != domain.RoleUser {
		t.Fatalf("IdentityFrom = %+v", id)
	}
}
