package services

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"storefront-api/models"
)

func TestSignupAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.accounts.Signup(ctx, SignupForm{Email: " Ada@Example.com ", Password: "secret1"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.Role != models.RoleUser || u.Email != "ada@example.com" || u.Name != "ada" {
		t.Errorf("unexpected account %+v", u)
	}
	if u.PasswordHash == "secret1" || !strings.HasPrefix(u.PasswordHash, "$2") {
		t.Errorf("password not hashed with bcrypt: %q", u.PasswordHash)
	}

	got, err := f.accounts.Login(ctx, "ADA@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("logged in as %s, want %s", got.ID, u.ID)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u, err := f.accounts.Signup(ctx, SignupForm{Email: "ada@example.com", Password: "secret1"})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.accounts.Login(ctx, "ada@example.com", "wrong-password")
	if !errors.Is(err, ErrIncorrectPassword) {
		t.Fatalf("Login with wrong password = %v, want ErrIncorrectPassword", err)
	}
	if msg := Message(err); msg != "Incorrect password" || strings.Contains(msg, u.PasswordHash) {
		t.Errorf("message = %q", msg)
	}

	_, err = f.accounts.Login(ctx, "nobody@example.com", "secret1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Login with unknown email = %v, want ErrNotFound", err)
	}
	if msg := Message(err); msg != "No account found with this email" {
		t.Errorf("message = %q", msg)
	}
}

func TestSignupRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.accounts.Signup(ctx, SignupForm{Email: "ada@example.com", Password: "secret1"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		form    SignupForm
		field   string
		wantErr error
	}{
		{name: "bad email", form: SignupForm{Email: "not-an-email", Password: "secret1"}, field: "email"},
		{name: "short password", form: SignupForm{Email: "bob@example.com", Password: "12345"}, field: "password"},
		{name: "long password", form: SignupForm{Email: "bob@example.com", Password: strings.Repeat("a", 80)}, field: "password"},
		{name: "long password in bytes", form: SignupForm{Email: "bob@example.com", Password: strings.Repeat("é", 40)}, field: "password"},
		{name: "duplicate email", form: SignupForm{Email: "ADA@example.com", Password: "secret1"}, wantErr: ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.accounts.Signup(ctx, tt.form)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Signup = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if fields := fieldsOf(t, err); fields[tt.field] == "" {
				t.Errorf("no error for %q, got %v", tt.field, fields)
			}
		})
	}
}

func TestSignupDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	off := false
	if _, err := f.settings.Update(ctx, models.SettingsPatch{AllowSignups: &off}); err != nil {
		t.Fatal(err)
	}
	_, err := f.accounts.Signup(ctx, SignupForm{Email: "ada@example.com", Password: "secret1"})
	if !errors.Is(err, ErrSignupsDisabled) {
		t.Fatalf("Signup = %v, want ErrSignupsDisabled", err)
	}
}
