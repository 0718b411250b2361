package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"storefront-api/models"
	"storefront-api/statemachine"
	"storefront-api/store"
	"storefront-api/store/storetest"
)

func TestAllowList(t *testing.T) {
	a := NewAllowList([]string{" uid-1 ", "", "uid-2"})
	tests := []struct {
		id   string
		want models.Role
	}{
		{"uid-1", models.RoleAdmin},
		{"uid-2", models.RoleAdmin},
		{"uid-3", models.RoleUser},
		{"", models.RoleUser},
	}
	for _, tt := range tests {
		got, err := a.ResolveRole(context.Background(), tt.id)
		if err != nil || got != tt.want {
			t.Errorf("ResolveRole(%q) = %q, %v; want %q", tt.id, got, err, tt.want)
		}
	}

	var calls []models.Role
	cancel, err := a.Subscribe(context.Background(), "uid-1", func(r models.Role, err error) {
		calls = append(calls, r)
	})
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	cancel()
	if len(calls) != 1 || calls[0] != models.RoleAdmin {
		t.Errorf("subscription delivered %v, want [admin]", calls)
	}
}

type roleRecorder struct {
	mu    sync.Mutex
	roles []models.Role
	ch    chan models.Role
}

func newRoleRecorder() *roleRecorder {
	return &roleRecorder{ch: make(chan models.Role, 16)}
}

func (r *roleRecorder) fn(role models.Role, err error) {
	if err != nil {
		return
	}
	r.mu.Lock()
	r.roles = append(r.roles, role)
	r.mu.Unlock()
	r.ch <- role
}

func (r *roleRecorder) next(t *testing.T) models.Role {
	t.Helper()
	select {
	case role := <-r.ch:
		return role
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for role update")
		return ""
	}
}

func newSQLUser(t *testing.T) (*store.GormUserRepository, *models.User) {
	t.Helper()
	s := storetest.NewSQL(t)
	users := s.Users.(*store.GormUserRepository)
	u := &models.User{Name: "ada", Email: "ada@example.com", PasswordHash: "x"}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return users, u
}

func TestSQLProfilesResolve(t *testing.T) {
	users, u := newSQLUser(t)
	p := NewSQLProfiles(users, time.Minute)
	ctx := context.Background()

	if role, err := p.ResolveRole(ctx, u.ID); err != nil || role != models.RoleUser {
		t.Errorf("ResolveRole = %q, %v; want user", role, err)
	}
	if err := users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if role, err := p.ResolveRole(ctx, u.ID); err != nil || role != models.RoleAdmin {
		t.Errorf("ResolveRole after promotion = %q, %v; want admin", role, err)
	}
	if role, err := p.ResolveRole(ctx, "404"); err != nil || role != models.RoleUser {
		t.Errorf("ResolveRole(unknown) = %q, %v; want user", role, err)
	}
}

func TestSQLProfilesSubscribeDeliversChanges(t *testing.T) {
	users, u := newSQLUser(t)
	p := NewSQLProfiles(users, 10*time.Millisecond)
	rec := newRoleRecorder()

	cancel, err := p.Subscribe(context.Background(), u.ID, rec.fn)
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	if role := rec.next(t); role != models.RoleUser {
		t.Fatalf("initial role = %q, want user", role)
	}
	if err := users.SetRole(context.Background(), u.ID, models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if role := rec.next(t); role != models.RoleAdmin {
		t.Fatalf("updated role = %q, want admin", role)
	}

	cancel()
	time.Sleep(50 * time.Millisecond)
	if err := users.SetRole(context.Background(), u.ID, models.RoleUser); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.roles) != 2 {
		t.Errorf("roles delivered after cancel: %v", rec.roles)
	}
}

// manualResolver lets tests push role updates.
type manualResolver struct {
	mu  sync.Mutex
	fns map[string]func(models.Role, error)
}

func (m *manualResolver) ResolveRole(context.Context, string) (models.Role, error) {
	return models.RoleUser, nil
}

func (m *manualResolver) Subscribe(_ context.Context, id string, fn func(models.Role, error)) (CancelFunc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fns == nil {
		m.fns = map[string]func(models.Role, error){}
	}
	m.fns[id] = fn
	return func() {}, nil
}

func (m *manualResolver) push(id string, role models.Role, err error) {
	m.mu.Lock()
	fn := m.fns[id]
	m.mu.Unlock()
	fn(role, err)
}

func TestTrackerFlow(t *testing.T) {
	r := &manualResolver{}
	tr := NewTracker(context.Background(), r)
	defer tr.Close()
	changes, detach := tr.Changes()
	defer detach()

	if tr.State() != statemachine.Unresolved {
		t.Fatalf("initial state %s", tr.State())
	}
	if err := tr.SignIn("uid-1"); err != nil {
		t.Fatal(err)
	}
	if tr.State() != statemachine.Unresolved {
		t.Errorf("state before role = %s, want unresolved", tr.State())
	}

	r.push("uid-1", "", errors.New("backend down"))
	if tr.State() != statemachine.Unresolved {
		t.Errorf("a failed lookup changed the state to %s", tr.State())
	}

	r.push("uid-1", models.RoleAdmin, nil)
	if tr.State() != statemachine.Admin {
		t.Errorf("state = %s, want admin", tr.State())
	}
	if got := <-changes; got != statemachine.Admin {
		t.Errorf("latest change = %s, want admin", got)
	}

	r.push("uid-1", models.RoleUser, nil)
	if d := statemachine.Guard(tr.State(), true); d.Action != statemachine.Redirect {
		t.Errorf("demoted principal on admin route: %+v", d)
	}

	if err := tr.SignOut(); err != nil {
		t.Fatal(err)
	}
	// Updates for the signed-out principal are ignored.
	r.push("uid-1", models.RoleAdmin, nil)
	if tr.State() != statemachine.Anonymous || tr.Principal() != "" {
		t.Errorf("state = %s principal = %q after sign-out", tr.State(), tr.Principal())
	}
}

func TestTrackerWithAllowList(t *testing.T) {
	tr := NewTracker(context.Background(), NewAllowList([]string{"boss"}))
	defer tr.Close()

	if err := tr.SignIn("boss"); err != nil {
		t.Fatal(err)
	}
	if tr.State() != statemachine.Admin {
		t.Errorf("state = %s, want admin", tr.State())
	}
	if err := tr.SignIn("guest"); err != nil {
		t.Fatal(err)
	}
	if tr.State() != statemachine.User {
		t.Errorf("state = %s, want user", tr.State())
	}
}
