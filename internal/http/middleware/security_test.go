package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securityEngine(opt SecurityOptions, pre ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	for _, mw := range pre {
		r.Use(mw)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := securityEngine(SecurityOptions{}, func(c *gin.Context) {
		c.Header("X-Request-ID", "rid-1")
		c.Next()
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, hdr := range []string{"Permissions-Policy", "Cache-Control", "Pragma", "Expires", "Strict-Transport-Security"} {
		if h.Get(hdr) != "" {
			t.Fatalf("unexpected optional header %s=%q", hdr, h.Get(hdr))
		}
	}
	if got := h.Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Fatalf("expose header = %q, want X-Request-ID", got)
	}
}

func TestSecurityHeaders_ExposeHeaderAppendAndDedupe(t *testing.T) {
	t.Run("append to existing list", func(t *testing.T) {
		r := securityEngine(SecurityOptions{}, func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-2")
			c.Header("Access-Control-Expose-Headers", "Retry-After")
			c.Next()
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if got := w.Header().Get("Access-Control-Expose-Headers"); got != "Retry-After, X-Request-ID" {
			t.Fatalf("expose header = %q", got)
		}
	})

	t.Run("already listed, leave unchanged", func(t *testing.T) {
		r := securityEngine(SecurityOptions{}, func(c *gin.Context) {
			c.Header("X-Request-ID", "rid-3")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
			c.Next()
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if got := w.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID, Retry-After" {
			t.Fatalf("expose header = %q", got)
		}
	})
}

func TestSecurityHeaders_PolicyNoStoreHSTS(t *testing.T) {
	r := securityEngine(SecurityOptions{
		EnableHSTS:   true,
		HSTSMaxAge:   24 * time.Hour,
		NoStore:      true,
		EnablePolicy: true,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.TLS = &tls.ConnectionState{}
	r.ServeHTTP(w, req)

	h := w.Header()
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %#v", h)
	}
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" || h.Get("Expires") != "0" {
		t.Fatalf("cache headers missing: %#v", h)
	}
	if got := h.Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestSecurityHeaders_HSTSRequiresHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}

	t.Run("plain HTTP gets no HSTS", func(t *testing.T) {
		r := securityEngine(opt)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
		if got := w.Header().Get("Strict-Transport-Security"); got != "" {
			t.Fatalf("unexpected HSTS on plain HTTP: %q", got)
		}
	})

	t.Run("X-Forwarded-Proto https counts", func(t *testing.T) {
		r := securityEngine(opt)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		r.ServeHTTP(w, req)
		if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains; preload" {
			t.Fatalf("HSTS = %q", got)
		}
	})
}

func Test_isHTTPS(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	if isHTTPS(plain) {
		t.Fatal("plain request reported as https")
	}

	viaTLS := httptest.NewRequest(http.MethodGet, "/", nil)
	viaTLS.TLS = &tls.ConnectionState{}
	if !isHTTPS(viaTLS) {
		t.Fatal("TLS request not reported as https")
	}

	viaProxy := httptest.NewRequest(http.MethodGet, "/", nil)
	viaProxy.Header.Set("X-Forwarded-Proto", "HTTPS")
	if !isHTTPS(viaProxy) {
		t.Fatal("forwarded https not reported")
	}
}
