package services

import (
	"context"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront-api/models"
	"storefront-api/storage"
	"storefront-api/store"
)

const productImageFolder = "products"

var centsPattern = regexp.MustCompile(`^[0-9]+$`)

// ProductForm is the admin product form. Price is submitted in cents.
type ProductForm struct {
	Name        string `form:"name" validate:"required,max=200"`
	Description string `form:"description" validate:"required"`
	Price       string `form:"price" validate:"required"`
	Category    string `form:"category" validate:"required"`

	// Newline-separated lists.
	Details            string `form:"details"`
	Featured           string `form:"featured"`
	RecipeName         string `form:"recipeName"`
	RecipeIngredients  string `form:"recipeIngredients"`
	RecipeInstructions string `form:"recipeInstructions"`
}

func (f *ProductForm) trim() {
	f.Name = strings.TrimSpace(f.Name)
	f.Description = strings.TrimSpace(f.Description)
	f.Price = strings.TrimSpace(f.Price)
	f.Category = strings.TrimSpace(f.Category)
	f.RecipeName = strings.TrimSpace(f.RecipeName)
}

// PriceFromCents converts a positive whole number of cents into dollars.
func PriceFromCents(cents string) (decimal.Decimal, bool) {
	cents = strings.TrimSpace(cents)
	if !centsPattern.MatchString(cents) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cents)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d.Shift(-2), true
}

type ProductService struct {
	products   store.ProductRepository
	categories store.CategoryRepository
	uploader   storage.Uploader
	reval      Revalidator
}

func NewProductService(s *store.Stores, uploader storage.Uploader, reval Revalidator) *ProductService {
	return &ProductService{
		products:   s.Products,
		categories: s.Categories,
		uploader:   uploader,
		reval:      reval,
	}
}

// List returns all products newest first. Backend failures yield an empty list.
func (s *ProductService) List(ctx context.Context) []models.Product {
	list, err := s.products.List(ctx)
	if err != nil {
		zap.L().Error("list products failed", zap.Error(err))
		return []models.Product{}
	}
	return list
}

func (s *ProductService) ListFeatured(ctx context.Context) []models.Product {
	list, err := s.products.ListFeatured(ctx)
	if err != nil {
		zap.L().Error("list featured products failed", zap.Error(err))
		return []models.Product{}
	}
	return list
}

// GetByID returns ErrNotFound for unknown ids.
func (s *ProductService) GetByID(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("Product not found")
		}
		return nil, errors.Wrap(err, "load product")
	}
	return p, nil
}

// Add validates the form, uploads the image and only then writes the product.
func (s *ProductService) Add(ctx context.Context, form ProductForm, image *storage.File) (*models.Product, error) {
	price, err := s.validate(ctx, &form, image, true)
	if err != nil {
		return nil, err
	}

	url, err := s.uploader.Upload(ctx, productImageFolder, *image)
	if err != nil {
		return nil, errors.Wrap(err, "upload product image")
	}

	p := &models.Product{ImageURL: url}
	form.applyTo(p, price)
	if err := s.products.Create(ctx, p); err != nil {
		s.removeImage(ctx, url)
		return nil, err
	}
	zap.L().Info("product created", zap.String("id", p.ID), zap.String("name", p.Name))
	s.reval.Revalidate(PathProducts, PathHome)
	return p, nil
}

// Update rewrites a product from the form. Without a new image the stored
// URL is kept; a replaced image is removed best-effort.
func (s *ProductService) Update(ctx context.Context, id string, form ProductForm, image *storage.File) (*models.Product, error) {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	price, err := s.validate(ctx, &form, image, false)
	if err != nil {
		return nil, err
	}

	oldURL := p.ImageURL
	if image != nil {
		url, err := s.uploader.Upload(ctx, productImageFolder, *image)
		if err != nil {
			return nil, errors.Wrap(err, "upload product image")
		}
		p.ImageURL = url
	}

	form.applyTo(p, price)
	if err := s.products.Update(ctx, p); err != nil {
		if p.ImageURL != oldURL {
			s.removeImage(ctx, p.ImageURL)
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("Product not found")
		}
		return nil, err
	}
	if p.ImageURL != oldURL {
		s.removeImage(ctx, oldURL)
	}
	s.reval.Revalidate(PathProducts, PathHome)
	return p, nil
}

// Delete removes the product, then its image best-effort.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundf("Product not found")
		}
		return err
	}
	s.removeImage(ctx, p.ImageURL)
	s.reval.Revalidate(PathProducts, PathHome)
	return nil
}

func (s *ProductService) removeImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.uploader.Delete(ctx, url); err != nil {
		zap.L().Warn("failed to remove product image", zap.String("url", url), zap.Error(err))
	}
}

func (s *ProductService) validate(ctx context.Context, form *ProductForm, image *storage.File, imageRequired bool) (decimal.Decimal, error) {
	form.trim()
	verr := validateStruct(form)

	price, ok := PriceFromCents(form.Price)
	if form.Price != "" && !ok {
		verr.Add("price", "must be a positive whole number of cents")
	}
	if imageRequired && (image == nil || image.Size == 0) {
		verr.Add("image", "is required")
	} else if image != nil && image.Size == 0 {
		verr.Add("image", "file is empty")
	}
	if form.RecipeName == "" && (strings.TrimSpace(form.RecipeIngredients) != "" || strings.TrimSpace(form.RecipeInstructions) != "") {
		verr.Add("recipeName", "is required when a recipe is given")
	}

	if form.Category != "" {
		c, err := s.categories.FindByName(ctx, form.Category)
		switch {
		case errors.Is(err, store.ErrNotFound):
			verr.Add("category", "does not exist")
		case err != nil:
			return decimal.Zero, errors.Wrap(err, "check category")
		default:
			form.Category = c.Name
		}
	}
	return price, verr.Err()
}

func (f ProductForm) applyTo(p *models.Product, price decimal.Decimal) {
	p.Name = f.Name
	p.Description = f.Description
	p.Price = price
	p.Category = f.Category
	p.Details = splitLines(f.Details)
	p.Featured = checked(f.Featured)
	p.Recipe = nil
	if f.RecipeName != "" {
		p.Recipe = &models.Recipe{
			Name:         f.RecipeName,
			Ingredients:  splitLines(f.RecipeIngredients),
			Instructions: splitLines(f.RecipeInstructions),
		}
	}
}

// checked interprets an HTML checkbox or boolean form value.
func checked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
