package services

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront-api/models"
	"storefront-api/storage"
	"storefront-api/store"
	"storefront-api/store/storetest"
)

type fakeUploader struct {
	mu        sync.Mutex
	uploads   []string
	deleted   []string
	failWith  error
	deleteErr error
}

func (f *fakeUploader) Upload(_ context.Context, folder string, file storage.File) (string, error) {
	if file.Size == 0 || file.Reader == nil {
		return "", storage.ErrEmptyFile
	}
	if f.failWith != nil {
		return "", f.failWith
	}
	if _, err := io.ReadAll(file.Reader); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	url := "/api/images/" + folder + "/" + storage.SanitizeName(file.Name)
	f.uploads = append(f.uploads, url)
	return url, nil
}

func (f *fakeUploader) Delete(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return f.deleteErr
}

type recordingRevalidator struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingRevalidator) Revalidate(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, paths...)
}

func (r *recordingRevalidator) has(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.paths {
		if p == path {
			return true
		}
	}
	return false
}

type fixture struct {
	db         *gorm.DB
	stores     *store.Stores
	uploader   *fakeUploader
	reval      *recordingRevalidator
	categories *CategoryService
	products   *ProductService
	banners    *BannerService
	settings   *SettingsService
	accounts   *AccountService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := storetest.OpenDB(t)
	s := store.NewSQLStores(db)
	f := &fixture{db: db, stores: s, uploader: &fakeUploader{}, reval: &recordingRevalidator{}}
	f.categories = NewCategoryService(s, f.reval)
	f.products = NewProductService(s, f.uploader, f.reval)
	f.banners = NewBannerService(s, f.uploader, f.reval)
	f.settings = NewSettingsService(s, models.DefaultSettings(true), f.reval)
	f.accounts = NewAccountService(s, f.settings)
	f.accounts.hashCost = 4
	return f
}

func image(name, body string) *storage.File {
	return &storage.File{Name: name, ContentType: "image/jpeg", Size: int64(len(body)), Reader: strings.NewReader(body)}
}

func (f *fixture) mustCategory(t *testing.T, name string) *models.Category {
	t.Helper()
	c, err := f.categories.Add(context.Background(), name)
	if err != nil {
		t.Fatalf("add category %q: %v", name, err)
	}
	return c
}

func (f *fixture) mustProduct(t *testing.T, name, category string) *models.Product {
	t.Helper()
	p, err := f.products.Add(context.Background(), ProductForm{
		Name:        name,
		Description: "A fine " + name,
		Price:       "1000",
		Category:    category,
	}, image(name+".jpg", "img"))
	if err != nil {
		t.Fatalf("add product %q: %v", name, err)
	}
	return p
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return verr.Fields
}

// failingProducts fails every write with err.
type failingProducts struct {
	store.ProductRepository
	err error
}

func (r failingProducts) Create(context.Context, *models.Product) error { return r.err }
func (r failingProducts) Update(context.Context, *models.Product) error { return r.err }

type failingBanners struct {
	store.BannerRepository
	err error
}

func (r failingBanners) Create(context.Context, *models.Banner) error { return r.err }
