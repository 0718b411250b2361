package statemachine

import (
	"strings"

	"github.com/pkg/errors"
)

// State is where a client session stands in resolving its principal's role.
type State string

const (
	// Unresolved covers both "identity not known yet" and "signed in, role
	// not resolved yet".
	Unresolved State = "unresolved"
	Anonymous  State = "resolved-anonymous"
	User       State = "resolved-user"
	Admin      State = "resolved-admin"
)

// Event is a notification from the identity provider or the role resolver.
type Event string

const (
	EventSignedOut Event = "signed-out"
	EventSignedIn  Event = "signed-in"
	EventRoleUser  Event = "role-user"
	EventRoleAdmin Event = "role-admin"
)

// ErrInvalidTransition is returned for events the current state cannot take.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition defines a valid state change and the event that triggers it
type Transition struct {
	From  State
	Event Event
	To    State
}

// validTransitions is the authoritative state machine definition
var validTransitions = []Transition{
	// First identity notification
	{From: Unresolved, Event: EventSignedOut, To: Anonymous},
	{From: Unresolved, Event: EventSignedIn, To: Unresolved},
	// Role lookup finished for the signed-in principal
	{From: Unresolved, Event: EventRoleUser, To: User},
	{From: Unresolved, Event: EventRoleAdmin, To: Admin},

	{From: Anonymous, Event: EventSignedOut, To: Anonymous},
	{From: Anonymous, Event: EventSignedIn, To: Unresolved},

	// Live role updates while signed in
	{From: User, Event: EventRoleUser, To: User},
	{From: User, Event: EventRoleAdmin, To: Admin},
	{From: Admin, Event: EventRoleAdmin, To: Admin},
	{From: Admin, Event: EventRoleUser, To: User},

	// Sign-out, or a different principal signing in
	{From: User, Event: EventSignedOut, To: Anonymous},
	{From: User, Event: EventSignedIn, To: Unresolved},
	{From: Admin, Event: EventSignedOut, To: Anonymous},
	{From: Admin, Event: EventSignedIn, To: Unresolved},
}

type transitionKey struct {
	From  State
	Event Event
}

var transitionMap = func() map[transitionKey]State {
	m := make(map[transitionKey]State, len(validTransitions))
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.Event}] = t.To
	}
	return m
}()

// Next applies ev to from.
func Next(from State, ev Event) (State, error) {
	if to, ok := transitionMap[transitionKey{from, ev}]; ok {
		return to, nil
	}
	return from, errors.Wrapf(ErrInvalidTransition,
		"%s cannot take %s; valid events from %s are: %s",
		from, ev, from, describeValidFrom(from))
}

// ValidEventsFrom returns the events accepted in state.
func ValidEventsFrom(state State) []Event {
	var events []Event
	for _, t := range validTransitions {
		if t.From == state {
			events = append(events, t.Event)
		}
	}
	return events
}

func describeValidFrom(state State) string {
	events := ValidEventsFrom(state)
	if len(events) == 0 {
		return "none"
	}
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	return validTransitions
}

// RoleEvent maps a resolved role name onto its event.
func RoleEvent(admin bool) Event {
	if admin {
		return EventRoleAdmin
	}
	return EventRoleUser
}

// ── Route guard ─────────────────────────────────────────────────────────────

// LoginPath is where guarded routes send principals that may not enter.
const LoginPath = "/login"

type Action string

const (
	Wait     Action = "wait"
	Redirect Action = "redirect"
	Allow    Action = "allow"
)

type Decision struct {
	Action   Action `json:"action"`
	Location string `json:"location,omitempty"`
}

// Guard decides navigation to a route. Nothing is decided while the state is
// unresolved.
func Guard(state State, adminOnly bool) Decision {
	switch state {
	case Admin:
		return Decision{Action: Allow}
	case User, Anonymous:
		if adminOnly {
			return Decision{Action: Redirect, Location: LoginPath}
		}
		return Decision{Action: Allow}
	}
	return Decision{Action: Wait}
}
