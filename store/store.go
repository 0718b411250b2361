// Package store holds the repository interfaces of the storefront and their
// sql (gorm) and firestore implementations. Exactly one implementation set is
// active per process, chosen by configuration.
package store

import (
	"context"

	"github.com/pkg/errors"

	"storefront-api/models"
)

// Backend names as reported by Stores.Backend.
const (
	BackendSQL       = "sql"
	BackendFirestore = "firestore"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

type CategoryRepository interface {
	// List returns all categories ordered by name ascending.
	List(ctx context.Context) ([]models.Category, error)
	Get(ctx context.Context, id string) (*models.Category, error)
	// FindByName matches names case-insensitively.
	FindByName(ctx context.Context, name string) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id string) error
}

type ProductRepository interface {
	// List returns all products, newest first.
	List(ctx context.Context) ([]models.Product, error)
	ListFeatured(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id string) error
	// CountByCategory counts products whose category field equals name.
	CountByCategory(ctx context.Context, name string) (int64, error)
}

type BannerRepository interface {
	// ListActive returns banners with active=true in no particular order.
	ListActive(ctx context.Context) ([]models.Banner, error)
	Get(ctx context.Context, id string) (*models.Banner, error)
	Create(ctx context.Context, b *models.Banner) error
	Delete(ctx context.Context, id string) error
}

type SettingsRepository interface {
	// Get returns ErrNotFound while the singleton has never been written.
	Get(ctx context.Context) (*models.Settings, error)
	// CreateIfAbsent inserts s unless a record already exists.
	CreateIfAbsent(ctx context.Context, s models.Settings) error
	// Merge writes only the fields set in patch.
	Merge(ctx context.Context, patch models.SettingsPatch) error
}

type UserRepository interface {
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// Create returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, u *models.User) error
}

type ProfileRepository interface {
	Get(ctx context.Context, uid string) (*models.Profile, error)
	CreateIfAbsent(ctx context.Context, uid string, p models.Profile) error
}

// Stores bundles the repositories of one backend.
type Stores struct {
	Backend    string
	Categories CategoryRepository
	Products   ProductRepository
	Banners    BannerRepository
	Settings   SettingsRepository
	// Users is set only by the sql backend.
	Users UserRepository
	// Profiles is set only by the firestore backend.
	Profiles ProfileRepository

	Maintenance Maintenance
}

// Maintenance backs the db-test and db-init endpoints.
type Maintenance interface {
	// Ping checks connectivity with a cheap round trip.
	Ping(ctx context.Context) error
	// Init prepares the schema and the settings singleton.
	Init(ctx context.Context, defaults models.Settings) error
}
