package store

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"storefront-api/models"
)

// Tables lists every gorm table of the sql backend, in migration order.
var Tables = []interface{}{
	&userRow{},
	&categoryRow{},
	&productRow{},
	&bannerRow{},
	&settingsRow{},
}

type userRow struct {
	ID           uint        `gorm:"primaryKey"`
	Name         string      `gorm:"not null"`
	Email        string      `gorm:"uniqueIndex;not null"`
	PasswordHash string      `gorm:"not null"`
	Role         models.Role `gorm:"not null;default:'user'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() models.User {
	return models.User{
		ID:           formatID(r.ID),
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Role:         r.Role,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type categoryRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

func (categoryRow) TableName() string { return "categories" }

func (r categoryRow) toModel() models.Category {
	return models.Category{ID: formatID(r.ID), Name: r.Name, CreatedAt: r.CreatedAt}
}

type productRow struct {
	ID          uint                `gorm:"primaryKey"`
	Name        string              `gorm:"not null"`
	Description string              `gorm:"type:text"`
	Price       decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	Category    string              `gorm:"index;not null"`
	ImageURL    string              `gorm:"size:1024"`
	Details     []string            `gorm:"type:text;serializer:json"`
	Featured    bool                `gorm:"index"`
	Recipe      *models.Recipe      `gorm:"type:text;serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (productRow) TableName() string { return "products" }

func (r productRow) toModel() models.Product {
	price := decimal.Zero
	if r.Price.Valid {
		price = r.Price.Decimal
	}
	details := r.Details
	if details == nil {
		details = []string{}
	}
	return models.Product{
		ID:          formatID(r.ID),
		Name:        r.Name,
		Description: r.Description,
		Price:       price,
		Category:    r.Category,
		ImageURL:    r.ImageURL,
		Details:     details,
		Featured:    r.Featured,
		Recipe:      r.Recipe,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func productRowFrom(p *models.Product) productRow {
	return productRow{
		Name:        p.Name,
		Description: p.Description,
		Price:       decimal.NullDecimal{Decimal: p.Price, Valid: true},
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Details:     p.Details,
		Featured:    p.Featured,
		Recipe:      p.Recipe,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type bannerRow struct {
	ID        uint   `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Subtitle  string
	ImageURL  string     `gorm:"size:1024"`
	ProductID string     `gorm:"index"`
	Active    bool       `gorm:"index"`
	CreatedAt *time.Time `gorm:"autoCreateTime:false"`
}

func (bannerRow) TableName() string { return "banners" }

func (r bannerRow) toModel() models.Banner {
	return models.Banner{
		ID:        formatID(r.ID),
		Title:     r.Title,
		Subtitle:  r.Subtitle,
		ImageURL:  r.ImageURL,
		ProductID: r.ProductID,
		Active:    r.Active,
		CreatedAt: r.CreatedAt,
	}
}

// settingsRow always carries ID == models.SettingsKey.
type settingsRow struct {
	ID               string `gorm:"primaryKey;size:32"`
	AllowSignups     bool
	ContactNumber    string
	MinOrderQuantity int
	UpdatedAt        time.Time
}

func (settingsRow) TableName() string { return "settings" }

func (r settingsRow) toModel() models.Settings {
	return models.Settings{
		AllowSignups:     r.AllowSignups,
		ContactNumber:    r.ContactNumber,
		MinOrderQuantity: r.MinOrderQuantity,
		UpdatedAt:        r.UpdatedAt,
	}
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// parseID converts an external id; malformed ids cannot match any row.
func parseID(id string) (uint, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
