// Package cart holds the shopper's cart. The cart lives in a signed cookie
// and is loaded into an explicit value for every request.
package cart

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront-api/models"
)

// MaxQuantity bounds a single line.
const MaxQuantity = 999

var ErrInvalidQuantity = errors.New("quantity must be between 1 and 999")

type Item struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// Cart is an ordered list of lines; every quantity is at least one.
type Cart struct {
	Items []Item `json:"items"`
}

func (c *Cart) index(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// Add puts qty of a product in the cart, merging with an existing line and
// keeping its position.
func (c *Cart) Add(productID string, qty int) error {
	if qty < 1 || qty > MaxQuantity || productID == "" {
		return ErrInvalidQuantity
	}
	if i := c.index(productID); i >= 0 {
		c.Items[i].Quantity = min(c.Items[i].Quantity+qty, MaxQuantity)
		return nil
	}
	c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty})
	return nil
}

// SetQuantity overwrites a line; a quantity below one removes it. It reports
// whether the product was in the cart.
func (c *Cart) SetQuantity(productID string, qty int) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	if qty < 1 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return true
	}
	c.Items[i].Quantity = min(qty, MaxQuantity)
	return true
}

func (c *Cart) Remove(productID string) bool {
	return c.SetQuantity(productID, 0)
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c *Cart) TotalQuantity() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Line is a priced cart line.
type Line struct {
	Item
	Product   models.Product  `json:"product"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

// Summary is the cart as shown to the shopper.
type Summary struct {
	Lines            []Line          `json:"lines"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	TotalQuantity    int             `json:"totalQuantity"`
	MinOrderQuantity int             `json:"minOrderQuantity"`
	MeetsMinimum     bool            `json:"meetsMinimum"`
	// Removed lists products that no longer exist and were dropped.
	Removed []string `json:"removed,omitempty"`
}

// ProductLookup returns a product or an error matching notFound.
type ProductLookup func(ctx context.Context, id string) (*models.Product, error)

// Price resolves every line against the catalog. Lines whose product is gone
// are removed from c.
func Price(ctx context.Context, c *Cart, lookup ProductLookup, isNotFound func(error) bool, minOrder int) (Summary, error) {
	sum := Summary{Lines: []Line{}, Subtotal: decimal.Zero, MinOrderQuantity: minOrder}
	kept := c.Items[:0]
	for _, it := range c.Items {
		p, err := lookup(ctx, it.ProductID)
		if err != nil {
			if isNotFound(err) {
				sum.Removed = append(sum.Removed, it.ProductID)
				continue
			}
			return Summary{}, errors.Wrapf(err, "price product %s", it.ProductID)
		}
		kept = append(kept, it)
		total := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		sum.Lines = append(sum.Lines, Line{Item: it, Product: *p, LineTotal: total})
		sum.Subtotal = sum.Subtotal.Add(total)
	}
	c.Items = kept
	sum.TotalQuantity = c.TotalQuantity()
	sum.MeetsMinimum = sum.TotalQuantity >= minOrder
	return sum, nil
}
