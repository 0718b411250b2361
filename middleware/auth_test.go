package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"storefront-api/auth"
	"storefront-api/models"
)

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	tok, err := j.GenerateToken(&models.User{ID: "7", Email: "ada@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	p, err := j.Verify(context.Background(), tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.ID != "7" || p.Email != "ada@example.com" {
		t.Errorf("principal = %+v", p)
	}

	if _, err := NewJWT("other-secret", time.Hour).Verify(context.Background(), tok); err == nil {
		t.Error("token verified with the wrong secret")
	}
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "7",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, _ := expired.SignedString([]byte("test-secret"))
	if _, err := j.Verify(context.Background(), signed); err == nil {
		t.Error("expired token verified")
	}
	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "7"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if _, err := j.Verify(context.Background(), unsigned); err == nil {
		t.Error("unsigned token verified")
	}
}

func newGuardedRouter(j *JWT, admins ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", AuthRequired(j), func(c *gin.Context) {
		c.JSON(http.StatusOK, GetPrincipal(c))
	})
	r.GET("/admin", AuthRequired(j), AdminRequired(auth.NewAllowList(admins)), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthAndAdminRequired(t *testing.T) {
	j := NewJWT("test-secret", time.Hour)
	r := newGuardedRouter(j, "1")
	adminTok, _ := j.GenerateToken(&models.User{ID: "1"})
	userTok, _ := j.GenerateToken(&models.User{ID: "2"})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no header", "/me", "", http.StatusUnauthorized},
		{"malformed header", "/me", "Token abc", http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer abc", http.StatusUnauthorized},
		{"valid token", "/me", "Bearer " + userTok, http.StatusOK},
		{"user on admin route", "/admin", "Bearer " + userTok, http.StatusForbidden},
		{"admin on admin route", "/admin", "Bearer " + adminTok, http.StatusNoContent},
		{"anonymous on admin route", "/admin", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
