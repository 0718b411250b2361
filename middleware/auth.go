package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"storefront-api/auth"
	"storefront-api/models"
)

const principalKey = "principal"

var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the verified identity behind a request.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Principal, error)
}

// ── JWT (sql backend) ───────────────────────────────────────────────────────

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWT issues and verifies HS256 tokens for password accounts.
type JWT struct {
	secret []byte
	ttl    time.Duration
}

func NewJWT(secret string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWT{secret: []byte(secret), ttl: ttl}
}

// GenerateToken creates a signed JWT for a given user
func (j *JWT) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secret)
	return signed, errors.Wrap(err, "sign token")
}

func (j *JWT) Verify(_ context.Context, tokenStr string) (*Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &Principal{ID: claims.UserID, Email: claims.Email}, nil
}

// ── Firebase ID tokens (firestore backend) ──────────────────────────────────

type FirebaseVerifier struct {
	client *firebaseauth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initialize firebase auth")
	}
	return &FirebaseVerifier{client: client}, nil
}

func (f *FirebaseVerifier) Verify(ctx context.Context, tokenStr string) (*Principal, error) {
	tok, err := f.client.VerifyIDToken(ctx, tokenStr)
	if err != nil {
		zap.L().Debug("id token rejected", zap.Error(err))
		return nil, ErrInvalidToken
	}
	email, _ := tok.Claims["email"].(string)
	return &Principal{ID: tok.UID, Email: email}, nil
}

// ── Handlers ────────────────────────────────────────────────────────────────

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// AuthRequired validates the bearer token and injects the principal into context
func AuthRequired(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := BearerToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required (Bearer <token>)"})
			return
		}
		p, err := v.Verify(c.Request.Context(), tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

// AdminRequired resolves the caller's role on every request, so promotions
// and demotions apply without signing in again. Must run after AuthRequired.
func AdminRequired(resolver auth.RoleResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		role, err := resolver.ResolveRole(c.Request.Context(), p.ID)
		if err != nil {
			zap.L().Error("role resolution failed", zap.String("principal", p.ID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Could not verify permissions, please retry"})
			return
		}
		if role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied. Admins only"})
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the verified caller, or nil on unauthenticated routes.
func GetPrincipal(c *gin.Context) *Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}
