package services

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"storefront-api/models"
	"storefront-api/store"
)

type CategoryService struct {
	categories store.CategoryRepository
	products   store.ProductRepository
	reval      Revalidator
}

func NewCategoryService(s *store.Stores, reval Revalidator) *CategoryService {
	return &CategoryService{categories: s.Categories, products: s.Products, reval: reval}
}

// List returns every category by name. Backend failures yield an empty list.
func (s *CategoryService) List(ctx context.Context) []models.Category {
	list, err := s.categories.List(ctx)
	if err != nil {
		zap.L().Error("list categories failed", zap.Error(err))
		return []models.Category{}
	}
	return list
}

// Add creates a category. Names are unique regardless of case.
func (s *CategoryService) Add(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		verr := &ValidationError{}
		verr.Add("name", "is required")
		return nil, verr
	}

	existing, err := s.categories.FindByName(ctx, name)
	switch {
	case err == nil:
		return nil, conflictf("Category %q already exists", existing.Name)
	case !errors.Is(err, store.ErrNotFound):
		return nil, errors.Wrap(err, "check category name")
	}

	c := &models.Category{Name: name}
	if err := s.categories.Create(ctx, c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, conflictf("Category %q already exists", name)
		}
		return nil, err
	}
	s.reval.Revalidate(PathCategories, PathProducts, PathHome)
	return c, nil
}

// Delete removes a category that no product references.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundf("Category not found")
		}
		return errors.Wrap(err, "load category")
	}

	n, err := s.products.CountByCategory(ctx, c.Name)
	if err != nil {
		return err
	}
	if n > 0 {
		return conflictf("Category %q is used by %d product(s)", c.Name, n)
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundf("Category not found")
		}
		return err
	}
	s.reval.Revalidate(PathCategories, PathProducts, PathHome)
	return nil
}
