package store

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"storefront-api/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := Migrate(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestProductMissingPriceReadsAsZero(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	row := productRow{Name: "Legacy", Category: "Misc"}
	if err := db.Create(&row).Error; err != nil {
		t.Fatal(err)
	}

	repo := &GormProductRepository{db: db}
	p, err := repo.Get(ctx, formatID(row.ID))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !p.Price.IsZero() {
		t.Errorf("price = %s, want 0", p.Price)
	}
	if p.Details == nil {
		t.Error("details should be an empty list, not nil")
	}
}

func TestProductUpdateWritesZeroValues(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &GormProductRepository{db: db}

	p := &models.Product{Name: "Tea", Category: "Drinks", Price: decimal.RequireFromString("4.50"), Featured: true}
	if err := repo.Create(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.Featured = false
	p.Price = decimal.RequireFromString("19.99")
	if err := repo.Update(ctx, p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := repo.Get(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Featured {
		t.Error("featured was not cleared")
	}
	if !got.Price.Equal(decimal.RequireFromString("19.99")) {
		t.Errorf("price = %s, want 19.99", got.Price)
	}

	featured, err := repo.ListFeatured(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(featured) != 0 {
		t.Errorf("featured = %d products, want 0", len(featured))
	}
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	stores := NewSQLStores(db)

	for _, id := range []string{"", "abc", "0", "-1", "42"} {
		if _, err := stores.Products.Get(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Products.Get(%q) err = %v, want ErrNotFound", id, err)
		}
		if err := stores.Categories.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Categories.Delete(%q) err = %v, want ErrNotFound", id, err)
		}
		if err := stores.Banners.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Banners.Delete(%q) err = %v, want ErrNotFound", id, err)
		}
	}
}

func TestCategoryRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &GormCategoryRepository{db: db}

	for _, name := range []string{"Snacks", "Bakery"} {
		if err := repo.Create(ctx, &models.Category{Name: name}); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.Create(ctx, &models.Category{Name: "Snacks"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate create err = %v, want ErrDuplicate", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Name != "Bakery" || list[1].Name != "Snacks" {
		t.Errorf("list = %+v, want Bakery then Snacks", list)
	}

	c, err := repo.FindByName(ctx, "bAKERY")
	if err != nil || c.Name != "Bakery" {
		t.Errorf("FindByName = %+v, %v", c, err)
	}
}

func TestSettingsCreateIfAbsentAndMerge(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &GormSettingsRepository{db: db}

	if _, err := repo.Get(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store err = %v, want ErrNotFound", err)
	}
	if err := repo.Merge(ctx, models.SettingsPatch{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Merge without a record err = %v, want ErrNotFound", err)
	}

	if err := repo.CreateIfAbsent(ctx, models.Settings{AllowSignups: true, ContactNumber: "555-0100", MinOrderQuantity: 1}); err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateIfAbsent(ctx, models.Settings{AllowSignups: false}); err != nil {
		t.Fatalf("second CreateIfAbsent: %v", err)
	}
	var count int64
	db.Model(&settingsRow{}).Count(&count)
	if count != 1 {
		t.Fatalf("settings rows = %d, want 1", count)
	}

	off := false
	if err := repo.Merge(ctx, models.SettingsPatch{AllowSignups: &off}); err != nil {
		t.Fatal(err)
	}
	s, err := repo.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.AllowSignups || s.ContactNumber != "555-0100" || s.MinOrderQuantity != 1 {
		t.Errorf("settings after merge = %+v", s)
	}
}

func TestUserRepository(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := &GormUserRepository{db: db}

	u := &models.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	if u.Role != models.RoleUser || u.ID == "" {
		t.Errorf("created user = %+v, want role user and an id", u)
	}
	if err := repo.Create(ctx, &models.User{Name: "Other", Email: "ada@example.com", PasswordHash: "x"}); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email err = %v, want ErrDuplicate", err)
	}

	if err := repo.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if got.Role != models.RoleAdmin {
		t.Errorf("role = %s, want admin", got.Role)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing email err = %v, want ErrNotFound", err)
	}
}

func TestMaintenanceInit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	m := &gormMaintenance{db: db}

	if err := m.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := m.Init(ctx, models.DefaultSettings(true)); err != nil {
			t.Fatalf("Init #%d: %v", i+1, err)
		}
	}
	s, err := (&GormSettingsRepository{db: db}).Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !s.AllowSignups || s.MinOrderQuantity != 1 {
		t.Errorf("settings = %+v", s)
	}
}
