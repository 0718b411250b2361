package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront-api/models"
	"storefront-api/store"
)

var errPasswordAccountsDisabled = errors.New("password accounts are not enabled on this backend")

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

type SignupForm struct {
	Name     string `json:"name" form:"name" validate:"max=100"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required,min=6,max=72"`
}

// AccountService signs principals up and in. Password accounts exist on the
// sql backend; the firestore backend only keeps role profiles.
type AccountService struct {
	users    store.UserRepository
	profiles store.ProfileRepository
	settings *SettingsService
	hashCost int
}

func NewAccountService(s *store.Stores, settings *SettingsService) *AccountService {
	return &AccountService{
		users:    s.Users,
		profiles: s.Profiles,
		settings: settings,
		hashCost: bcrypt.DefaultCost,
	}
}

// Signup creates a password account with role user.
func (s *AccountService) Signup(ctx context.Context, form SignupForm) (*models.User, error) {
	if s.users == nil {
		return nil, errPasswordAccountsDisabled
	}
	// Fail closed: an unreadable settings record does not open signups.
	settings, err := s.settings.load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read settings")
	}
	if !settings.AllowSignups {
		return nil, ErrSignupsDisabled
	}

	form.Name = strings.TrimSpace(form.Name)
	form.Email = normalizeEmail(form.Email)
	verr := validateStruct(form)
	// The max tag counts runes; bcrypt counts bytes.
	if len(form.Password) > maxPasswordBytes {
		verr.Add("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.hashCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	name := form.Name
	if name == "" {
		name = strings.SplitN(form.Email, "@", 2)[0]
	}
	u := &models.User{
		Name:         name,
		Email:        form.Email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictf("Email already registered")
		}
		return nil, err
	}
	zap.L().Info("account created", zap.String("user_id", u.ID))
	return u, nil
}

// Login checks a password against the stored bcrypt hash.
func (s *AccountService) Login(ctx context.Context, email, password string) (*models.User, error) {
	if s.users == nil {
		return nil, errPasswordAccountsDisabled
	}
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoAccount
		}
		return nil, errors.Wrap(err, "load account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrIncorrectPassword
	}
	return u, nil
}

// Lookup returns the account behind a verified token subject.
func (s *AccountService) Lookup(ctx context.Context, id string) (*models.User, error) {
	if s.users == nil {
		return nil, errPasswordAccountsDisabled
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("Account not found")
		}
		return nil, errors.Wrap(err, "load account")
	}
	return u, nil
}

// EnsureProfile writes the role profile of a firestore principal on first
// sight. Existing profiles, and their roles, are left untouched.
func (s *AccountService) EnsureProfile(ctx context.Context, uid, email string) error {
	if s.profiles == nil {
		return nil
	}
	return s.profiles.CreateIfAbsent(ctx, uid, models.Profile{
		Email:     normalizeEmail(email),
		Role:      models.RoleUser,
		CreatedAt: time.Now(),
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
