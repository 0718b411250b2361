package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"

	"storefront-api/models"
)

type fakeUsers struct {
	mu     sync.Mutex
	claims map[string]map[string]interface{}
	err    error
}

func (f *fakeUsers) GetUser(_ context.Context, uid string) (*firebaseauth.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &firebaseauth.UserRecord{
		UserInfo:     &firebaseauth.UserInfo{UID: uid},
		CustomClaims: f.claims[uid],
	}, nil
}

func (f *fakeUsers) set(uid string, claims map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claims[uid] = claims
}

func TestRoleFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]interface{}
		want   models.Role
	}{
		{"nil", nil, models.RoleUser},
		{"admin", map[string]interface{}{"admin": true}, models.RoleAdmin},
		{"admin false", map[string]interface{}{"admin": false}, models.RoleUser},
		{"admin as string", map[string]interface{}{"admin": "true"}, models.RoleUser},
		{"other claims", map[string]interface{}{"tier": "gold"}, models.RoleUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleFromClaims(tt.claims); got != tt.want {
				t.Errorf("RoleFromClaims(%v) = %q, want %q", tt.claims, got, tt.want)
			}
		})
	}
}

func TestCustomClaimsResolve(t *testing.T) {
	users := &fakeUsers{claims: map[string]map[string]interface{}{
		"uid-admin": {"admin": true},
	}}
	c := NewCustomClaims(users, time.Minute)
	ctx := context.Background()

	if role, err := c.ResolveRole(ctx, "uid-admin"); err != nil || role != models.RoleAdmin {
		t.Errorf("ResolveRole(admin) = %q, %v", role, err)
	}
	if role, err := c.ResolveRole(ctx, "uid-plain"); err != nil || role != models.RoleUser {
		t.Errorf("ResolveRole(plain) = %q, %v", role, err)
	}

	users.err = errors.New("deadline exceeded")
	if _, err := c.ResolveRole(ctx, "uid-admin"); err == nil {
		t.Error("lookup failure did not surface")
	}
}

func TestCustomClaimsSubscribeSeesGrant(t *testing.T) {
	users := &fakeUsers{claims: map[string]map[string]interface{}{}}
	c := NewCustomClaims(users, 10*time.Millisecond)
	rec := newRoleRecorder()

	cancel, err := c.Subscribe(context.Background(), "uid-1", rec.fn)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	if role := rec.next(t); role != models.RoleUser {
		t.Fatalf("initial role = %q, want user", role)
	}
	users.set("uid-1", map[string]interface{}{"admin": true})
	if role := rec.next(t); role != models.RoleAdmin {
		t.Fatalf("role after grant = %q, want admin", role)
	}
}
