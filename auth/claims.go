package auth

import (
	"context"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"

	"storefront-api/models"
)

// AdminClaim is the custom claim granted by cmd/grant-admin.
const AdminClaim = "admin"

// UserLookup is the part of the Firebase Auth client CustomClaims reads.
type UserLookup interface {
	GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)
}

// CustomClaims makes principals admins when their Firebase account carries
// admin=true in its custom claims. The account is read on every resolution,
// so a grant applies without waiting for the ID token to refresh.
type CustomClaims struct {
	users    UserLookup
	interval time.Duration
}

func NewCustomClaims(users UserLookup, interval time.Duration) *CustomClaims {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &CustomClaims{users: users, interval: interval}
}

// ResolveRole treats unknown principals as plain users.
func (c *CustomClaims) ResolveRole(ctx context.Context, principalID string) (models.Role, error) {
	u, err := c.users.GetUser(ctx, principalID)
	if firebaseauth.IsUserNotFound(err) {
		return models.RoleUser, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "resolve role from claims")
	}
	return RoleFromClaims(u.CustomClaims), nil
}

func (c *CustomClaims) Subscribe(ctx context.Context, principalID string, fn func(models.Role, error)) (CancelFunc, error) {
	return poll(ctx, c.interval, func(ctx context.Context) (models.Role, error) {
		return c.ResolveRole(ctx, principalID)
	}, fn), nil
}

// RoleFromClaims reads the admin claim of a token or user record.
func RoleFromClaims(claims map[string]interface{}) models.Role {
	if admin, _ := claims[AdminClaim].(bool); admin {
		return models.RoleAdmin
	}
	return models.RoleUser
}
