// Package auth resolves principals to roles and tracks the role-gating state
// of client sessions.
package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"storefront-api/models"
	"storefront-api/store"
)

// CancelFunc stops a subscription. Calling it more than once is harmless.
type CancelFunc func()

// RoleResolver answers which role a principal holds, once or continuously.
type RoleResolver interface {
	ResolveRole(ctx context.Context, principalID string) (models.Role, error)
	// Subscribe calls fn with the current role and again whenever it changes,
	// until the returned CancelFunc is called or ctx ends. fn may be called
	// before Subscribe returns.
	Subscribe(ctx context.Context, principalID string, fn func(models.Role, error)) (CancelFunc, error)
}

func roleOrUser(r models.Role) models.Role {
	if r.Valid() {
		return r
	}
	return models.RoleUser
}

// ── Allow-list ──────────────────────────────────────────────────────────────

// AllowList makes exactly the configured principals admins. Resolution needs
// no I/O.
type AllowList struct {
	admins map[string]struct{}
}

func NewAllowList(ids []string) *AllowList {
	a := &AllowList{admins: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			a.admins[id] = struct{}{}
		}
	}
	return a
}

func (a *AllowList) role(principalID string) models.Role {
	if _, ok := a.admins[principalID]; ok {
		return models.RoleAdmin
	}
	return models.RoleUser
}

func (a *AllowList) ResolveRole(_ context.Context, principalID string) (models.Role, error) {
	return a.role(principalID), nil
}

// Subscribe delivers the role once; the list never changes at runtime.
func (a *AllowList) Subscribe(_ context.Context, principalID string, fn func(models.Role, error)) (CancelFunc, error) {
	fn(a.role(principalID), nil)
	return func() {}, nil
}

// ── SQL profiles ────────────────────────────────────────────────────────────

// SQLProfiles reads the role column of the users table and polls it for
// subscribers.
type SQLProfiles struct {
	users    store.UserRepository
	interval time.Duration
}

func NewSQLProfiles(users store.UserRepository, interval time.Duration) *SQLProfiles {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &SQLProfiles{users: users, interval: interval}
}

// ResolveRole treats unknown principals as plain users.
func (p *SQLProfiles) ResolveRole(ctx context.Context, principalID string) (models.Role, error) {
	u, err := p.users.Get(ctx, principalID)
	if errors.Is(err, store.ErrNotFound) {
		return models.RoleUser, nil
	}
	if err != nil {
		return "", errors.Wrap(err, "resolve role")
	}
	return roleOrUser(u.Role), nil
}

func (p *SQLProfiles) Subscribe(ctx context.Context, principalID string, fn func(models.Role, error)) (CancelFunc, error) {
	return poll(ctx, p.interval, func(ctx context.Context) (models.Role, error) {
		return p.ResolveRole(ctx, principalID)
	}, fn), nil
}

// poll delivers the current role, then re-resolves every interval and reports
// changes and the first error of each failure streak.
func poll(ctx context.Context, interval time.Duration, resolve func(context.Context) (models.Role, error), fn func(models.Role, error)) CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	role, err := resolve(ctx)
	fn(role, err)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		last, lastErr := role, err
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			role, err := resolve(ctx)
			if ctx.Err() != nil {
				return
			}
			switch {
			case err != nil && lastErr == nil:
				fn("", err)
			case err == nil && (role != last || lastErr != nil):
				fn(role, nil)
				last = role
			}
			lastErr = err
		}
	}()
	return onceCancel(cancel)
}

func onceCancel(stop func()) CancelFunc {
	var once sync.Once
	return func() { once.Do(stop) }
}

// logRoleError is the default handling of subscription failures.
func logRoleError(principalID string, err error) {
	zap.L().Warn("role subscription failed", zap.String("principal", principalID), zap.Error(err))
}
