// README: Tests for Firebase auth, permission checks, logging and recovery middleware.
package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"fulfillments/internal/http/middleware"
	"fulfillments/internal/infra"
)

// stubVerifier is a test double for infra.TokenVerifier.
type stubVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func newTestRouter(verifier infra.TokenVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Auth(verifier))
	r.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"uid": middleware.CallerUID(c), "role": middleware.CallerRole(c)})
	})
	r.GET("/tasks", middleware.RequirePermission(middleware.PermissionTasksAndOrder), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}})
	if w := do(r, "/test", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_InvalidBearerPrefix(t *testing.T) {
	r := newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "user1"}})
	if w := do(r, "/test", "Token sometoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_VerifierError(t *testing.T) {
	r := newTestRouter(&stubVerifier{err: errors.New("bad token")})
	if w := do(r, "/test", "Bearer invalidtoken"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAuth_ValidToken_UIDAndRolePopulated(t *testing.T) {
	token := &infra.FirebaseToken{
		UID:    "staff123",
		Claims: map[string]interface{}{"role": "admin"},
	}
	w := do(newTestRouter(&stubVerifier{token: token}), "/test", "Bearer validtoken")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "staff123") || !strings.Contains(body, `"role":"admin"`) {
		t.Errorf("expected uid and role in body, got %s", body)
	}
}

func TestRequirePermission(t *testing.T) {
	cases := []struct {
		name   string
		claims map[string]interface{}
		want   int
	}{
		{"admin role", map[string]interface{}{"role": "admin"}, http.StatusNoContent},
		{"permission claim", map[string]interface{}{"permissions": []interface{}{"ReadCatalog", "TasksAndOrder"}}, http.StatusNoContent},
		{"other permission", map[string]interface{}{"permissions": []interface{}{"ReadCatalog"}}, http.StatusForbidden},
		{"no claims", map[string]interface{}{}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&stubVerifier{token: &infra.FirebaseToken{UID: "u1", Claims: tc.claims}})
			if w := do(r, "/tasks", "Bearer tok"); w.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestLoggingSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	r := gin.New()
	r.Use(middleware.Logging(log))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, middleware.RequestID(c)) })

	w := do(r, "/ping", "")
	id := w.Header().Get("X-Request-ID")
	if id == "" || w.Body.String() != id {
		t.Fatalf("expected request id header to match context, got %q / %q", id, w.Body.String())
	}
	if !strings.Contains(buf.String(), id) || !strings.Contains(buf.String(), `"path":"/ping"`) {
		t.Fatalf("expected log line with request id, got %s", buf.String())
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.Recovery(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	if w := do(r, "/boom", ""); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
