package auth

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"storefront-api/models"
	"storefront-api/statemachine"
)

// Tracker follows one client session: identity changes and role updates
// drive the gate state machine, and every new state is published to
// listeners.
type Tracker struct {
	resolver RoleResolver
	ctx      context.Context

	mu        sync.Mutex
	state     statemachine.State
	principal string
	gen       uint64
	cancel    CancelFunc
	listeners map[int]chan statemachine.State
	nextID    int
	closed    bool
}

// NewTracker starts in the unresolved state. Subscriptions end with ctx.
func NewTracker(ctx context.Context, resolver RoleResolver) *Tracker {
	return &Tracker{
		resolver:  resolver,
		ctx:       ctx,
		state:     statemachine.Unresolved,
		listeners: map[int]chan statemachine.State{},
	}
}

func (t *Tracker) State() statemachine.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) Principal() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.principal
}

// Changes returns a channel holding the latest state not yet received, and a
// function that detaches it.
func (t *Tracker) Changes() (<-chan statemachine.State, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	ch := make(chan statemachine.State, 1)
	t.listeners[id] = ch
	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// SignIn switches the session to principalID and subscribes to its role.
// The state stays unresolved until the first role arrives.
func (t *Tracker) SignIn(principalID string) error {
	t.mu.Lock()
	if err := t.apply(statemachine.EventSignedIn); err != nil {
		t.mu.Unlock()
		return err
	}
	t.stopLocked()
	t.gen++
	gen := t.gen
	t.principal = principalID
	t.mu.Unlock()

	cancel, err := t.resolver.Subscribe(t.ctx, principalID, func(role models.Role, err error) {
		t.onRole(gen, role, err)
	})
	if err != nil {
		logRoleError(principalID, err)
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen || t.closed {
		cancel()
		return nil
	}
	t.cancel = cancel
	return nil
}

// SignOut drops the principal and its role subscription.
func (t *Tracker) SignOut() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.gen++
	t.principal = ""
	return t.apply(statemachine.EventSignedOut)
}

// Close ends the role subscription and detaches every listener.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
	t.gen++
	t.closed = true
	t.listeners = map[int]chan statemachine.State{}
}

func (t *Tracker) onRole(gen uint64, role models.Role, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return
	}
	if err != nil {
		// The state is kept: a failed lookup proves neither admin nor user.
		logRoleError(t.principal, err)
		return
	}
	if aerr := t.apply(statemachine.RoleEvent(role == models.RoleAdmin)); aerr != nil {
		zap.L().Warn("dropped role update", zap.String("principal", t.principal), zap.Error(aerr))
	}
}

func (t *Tracker) stopLocked() {
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// apply moves the machine and notifies listeners; t.mu must be held.
func (t *Tracker) apply(ev statemachine.Event) error {
	next, err := statemachine.Next(t.state, ev)
	if err != nil {
		return err
	}
	t.state = next
	for _, ch := range t.listeners {
		select {
		case ch <- next:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- next
		}
	}
	return nil
}
