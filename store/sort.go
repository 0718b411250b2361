package store

import (
	"sort"

	"storefront-api/models"
)

func sortProductsNewestFirst(products []models.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})
}
