package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"storefront-api/models"
	"storefront-api/storage"
	"storefront-api/store"
)

const bannerImageFolder = "banners"

type BannerForm struct {
	Title     string `form:"title" validate:"required"`
	Subtitle  string `form:"subtitle" validate:"required"`
	ProductID string `form:"productId" validate:"required"`
}

type BannerService struct {
	banners  store.BannerRepository
	products store.ProductRepository
	uploader storage.Uploader
	reval    Revalidator
	now      func() time.Time
}

func NewBannerService(s *store.Stores, uploader storage.Uploader, reval Revalidator) *BannerService {
	return &BannerService{
		banners:  s.Banners,
		products: s.Products,
		uploader: uploader,
		reval:    reval,
		now:      time.Now,
	}
}

// Add creates an active banner linked to an existing product.
func (s *BannerService) Add(ctx context.Context, form BannerForm, image *storage.File) (*models.Banner, error) {
	form.Title = strings.TrimSpace(form.Title)
	form.Subtitle = strings.TrimSpace(form.Subtitle)
	form.ProductID = strings.TrimSpace(form.ProductID)

	verr := validateStruct(form)
	if image == nil || image.Size == 0 {
		verr.Add("image", "is required")
	}
	if form.ProductID != "" {
		_, err := s.products.Get(ctx, form.ProductID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			verr.Add("productId", "product does not exist")
		case err != nil:
			return nil, errors.Wrap(err, "check linked product")
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	url, err := s.uploader.Upload(ctx, bannerImageFolder, *image)
	if err != nil {
		return nil, errors.Wrap(err, "upload banner image")
	}
	created := s.now()
	b := &models.Banner{
		Title:     form.Title,
		Subtitle:  form.Subtitle,
		ImageURL:  url,
		ProductID: form.ProductID,
		Active:    true,
		CreatedAt: &created,
	}
	if err := s.banners.Create(ctx, b); err != nil {
		s.removeImage(ctx, url)
		return nil, err
	}
	s.reval.Revalidate(PathBanners, PathHome)
	return b, nil
}

// List returns active banners newest first; banners without a timestamp come
// last. Backend failures yield an empty list.
func (s *BannerService) List(ctx context.Context) []models.Banner {
	list, err := s.banners.ListActive(ctx)
	if err != nil {
		zap.L().Error("list banners failed", zap.Error(err))
		return []models.Banner{}
	}
	sortBannersNewestFirst(list)
	return list
}

// Delete removes the banner, then its image best-effort.
func (s *BannerService) Delete(ctx context.Context, id string) error {
	b, err := s.banners.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundf("Banner not found")
		}
		return errors.Wrap(err, "load banner")
	}
	if err := s.banners.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFoundf("Banner not found")
		}
		return err
	}
	s.removeImage(ctx, b.ImageURL)
	s.reval.Revalidate(PathBanners, PathHome)
	return nil
}

func (s *BannerService) removeImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.uploader.Delete(ctx, url); err != nil {
		zap.L().Warn("failed to remove banner image", zap.String("url", url), zap.Error(err))
	}
}

func sortBannersNewestFirst(list []models.Banner) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].CreatedAt, list[j].CreatedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
}
