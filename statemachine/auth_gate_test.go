package statemachine

import (
	"testing"

	"github.com/pkg/errors"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from    State
		ev      Event
		want    State
		wantErr bool
	}{
		{Unresolved, EventSignedOut, Anonymous, false},
		{Unresolved, EventSignedIn, Unresolved, false},
		{Unresolved, EventRoleAdmin, Admin, false},
		{Anonymous, EventSignedIn, Unresolved, false},
		{User, EventRoleAdmin, Admin, false},
		{Admin, EventRoleUser, User, false},
		{Admin, EventSignedOut, Anonymous, false},
		{Anonymous, EventRoleAdmin, Anonymous, true},
		{Anonymous, EventRoleUser, Anonymous, true},
		{State("bogus"), EventSignedIn, State("bogus"), true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"+"+string(tt.ev), func(t *testing.T) {
			got, err := Next(tt.from, tt.ev)
			if tt.wantErr != (err != nil) {
				t.Fatalf("Next err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("error %v is not ErrInvalidTransition", err)
			}
			if got != tt.want {
				t.Errorf("Next = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEveryStateHasTransitions(t *testing.T) {
	for _, s := range []State{Unresolved, Anonymous, User, Admin} {
		if len(ValidEventsFrom(s)) == 0 {
			t.Errorf("%s has no outgoing transitions", s)
		}
	}
	if len(GetAllTransitions()) != len(transitionMap) {
		t.Error("transition table has duplicate (state, event) pairs")
	}
}

func TestGuard(t *testing.T) {
	tests := []struct {
		state     State
		adminOnly bool
		want      Decision
	}{
		{Unresolved, true, Decision{Action: Wait}},
		{Unresolved, false, Decision{Action: Wait}},
		{Anonymous, true, Decision{Action: Redirect, Location: LoginPath}},
		{Anonymous, false, Decision{Action: Allow}},
		{User, true, Decision{Action: Redirect, Location: LoginPath}},
		{User, false, Decision{Action: Allow}},
		{Admin, true, Decision{Action: Allow}},
		{Admin, false, Decision{Action: Allow}},
	}
	for _, tt := range tests {
		if got := Guard(tt.state, tt.adminOnly); got != tt.want {
			t.Errorf("Guard(%s, %v) = %+v, want %+v", tt.state, tt.adminOnly, got, tt.want)
		}
	}
}

func TestSignedInStaysUnresolvedUntilRole(t *testing.T) {
	s := Unresolved
	steps := []Event{EventSignedOut, EventSignedIn}
	for _, ev := range steps {
		var err error
		if s, err = Next(s, ev); err != nil {
			t.Fatal(err)
		}
	}
	if d := Guard(s, true); d.Action != Wait {
		t.Fatalf("signed in without role: %+v, want wait", d)
	}
	s, _ = Next(s, RoleEvent(true))
	if d := Guard(s, true); d.Action != Allow {
		t.Errorf("admin role resolved: %+v, want allow", d)
	}
}
