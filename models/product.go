package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Price is held in dollars with two decimal places.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"` // category name, not id
	ImageURL    string          `json:"image_url"`
	Details     []string        `json:"details"`
	Featured    bool            `json:"featured"`
	Recipe      *Recipe         `json:"recipe"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type Recipe struct {
	Name         string   `json:"name" firestore:"name"`
	Ingredients  []string `json:"ingredients" firestore:"ingredients"`
	Instructions []string `json:"instructions" firestore:"instructions"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Banner is a homepage promotion linked to a product.
type Banner struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Subtitle  string     `json:"subtitle"`
	ImageURL  string     `json:"image_url"`
	ProductID string     `json:"product_id"`
	Active    bool       `json:"active"`
	CreatedAt *time.Time `json:"created_at"` // nil on legacy records
}
