package middlewares

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pawnest/adoptions_backend/utils"
)

func authTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware())
	r.GET("/probe-claims", func(c *gin.Context) {
		claim := CtxValue(c.Request.Context())
		if claim == nil {
			c.JSON(http.StatusOK, gin.H{"claims": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"claims": true, "id": claim.ID, "role": claim.Role})
	})
	return r
}

func TestAuthMiddlewarePopulatesClaims(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "1")
	token, err := utils.JwtGenerate(42, "Admin")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	r := authTestRouter()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe-claims", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"claims":true`) || !strings.Contains(body, `"id":42`) || !strings.Contains(body, `"role":"Admin"`) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestAuthMiddlewarePassesThroughWithoutHeader(t *testing.T) {
	r := authTestRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe-claims", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"claims":false`) {
		t.Fatalf("request without Authorization must carry no claims: %s", w.Body.String())
	}
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "1")

	for _, header := range []string{
		"Bearer not-a-jwt",
		"Basic dXNlcjpwdw==",
		"Bearer",
	} {
		r := authTestRouter()
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/probe-claims", nil)
		req.Header.Set("Authorization", header)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}
