package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-api/models"
)

// NewSQLStores wires every repository of the sql backend onto one gorm pool.
func NewSQLStores(db *gorm.DB) *Stores {
	return &Stores{
		Backend:     BackendSQL,
		Categories:  &GormCategoryRepository{db: db},
		Products:    &GormProductRepository{db: db},
		Banners:     &GormBannerRepository{db: db},
		Settings:    &GormSettingsRepository{db: db},
		Users:       &GormUserRepository{db: db},
		Maintenance: &gormMaintenance{db: db},
	}
}

// Migrate creates or updates every sql table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Tables...); err != nil {
		return errors.Wrap(err, "migrate database")
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// ── Categories ──────────────────────────────────────────────────────────────

type GormCategoryRepository struct {
	db *gorm.DB
}

func (r *GormCategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	var rows []categoryRow
	if err := r.db.WithContext(ctx).Order("name asc").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	out := make([]models.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *GormCategoryRepository) Get(ctx context.Context, id string) (*models.Category, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var row categoryRow
	if err := r.db.WithContext(ctx).First(&row, n).Error; err != nil {
		return nil, translate(err)
	}
	c := row.toModel()
	return &c, nil
}

func (r *GormCategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	var row categoryRow
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(name)).
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	c := row.toModel()
	return &c, nil
}

func (r *GormCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	row := categoryRow{Name: c.Name}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(translate(err), "create category")
	}
	c.ID = formatID(row.ID)
	c.CreatedAt = row.CreatedAt
	return nil
}

func (r *GormCategoryRepository) Delete(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	res := r.db.WithContext(ctx).Delete(&categoryRow{}, n)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete category")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Products ────────────────────────────────────────────────────────────────

type GormProductRepository struct {
	db *gorm.DB
}

func (r *GormProductRepository) List(ctx context.Context) ([]models.Product, error) {
	return r.find(ctx, r.db.WithContext(ctx))
}

func (r *GormProductRepository) ListFeatured(ctx context.Context) ([]models.Product, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("featured = ?", true))
}

func (r *GormProductRepository) find(_ context.Context, query *gorm.DB) ([]models.Product, error) {
	var rows []productRow
	if err := query.Order("created_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	out := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *GormProductRepository) Get(ctx context.Context, id string) (*models.Product, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var row productRow
	if err := r.db.WithContext(ctx).First(&row, n).Error; err != nil {
		return nil, translate(err)
	}
	p := row.toModel()
	return &p, nil
}

func (r *GormProductRepository) Create(ctx context.Context, p *models.Product) error {
	row := productRowFrom(p)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "create product")
	}
	p.ID = formatID(row.ID)
	p.CreatedAt = row.CreatedAt
	p.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *GormProductRepository) Update(ctx context.Context, p *models.Product) error {
	n, ok := parseID(p.ID)
	if !ok {
		return ErrNotFound
	}
	row := productRowFrom(p)
	row.ID = n
	row.UpdatedAt = time.Now()
	// Select("*") so zero values such as featured=false are written too.
	res := r.db.WithContext(ctx).Model(&productRow{ID: n}).
		Select("*").Omit("id", "created_at").
		Updates(&row)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update product")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *GormProductRepository) Delete(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	res := r.db.WithContext(ctx).Delete(&productRow{}, n)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete product")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormProductRepository) CountByCategory(ctx context.Context, name string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&productRow{}).
		Where("category = ?", name).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count products by category")
	}
	return count, nil
}

// ── Banners ─────────────────────────────────────────────────────────────────

type GormBannerRepository struct {
	db *gorm.DB
}

func (r *GormBannerRepository) ListActive(ctx context.Context) ([]models.Banner, error) {
	var rows []bannerRow
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list banners")
	}
	out := make([]models.Banner, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *GormBannerRepository) Get(ctx context.Context, id string) (*models.Banner, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var row bannerRow
	if err := r.db.WithContext(ctx).First(&row, n).Error; err != nil {
		return nil, translate(err)
	}
	b := row.toModel()
	return &b, nil
}

func (r *GormBannerRepository) Create(ctx context.Context, b *models.Banner) error {
	row := bannerRow{
		Title:     b.Title,
		Subtitle:  b.Subtitle,
		ImageURL:  b.ImageURL,
		ProductID: b.ProductID,
		Active:    b.Active,
		CreatedAt: b.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(err, "create banner")
	}
	b.ID = formatID(row.ID)
	return nil
}

func (r *GormBannerRepository) Delete(ctx context.Context, id string) error {
	n, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	res := r.db.WithContext(ctx).Delete(&bannerRow{}, n)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete banner")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Settings ────────────────────────────────────────────────────────────────

type GormSettingsRepository struct {
	db *gorm.DB
}

func (r *GormSettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var row settingsRow
	err := r.db.WithContext(ctx).Where("id = ?", models.SettingsKey).First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	s := row.toModel()
	return &s, nil
}

func (r *GormSettingsRepository) CreateIfAbsent(ctx context.Context, s models.Settings) error {
	row := settingsRow{
		ID:               models.SettingsKey,
		AllowSignups:     s.AllowSignups,
		ContactNumber:    s.ContactNumber,
		MinOrderQuantity: s.MinOrderQuantity,
		UpdatedAt:        time.Now(),
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
	return errors.Wrap(err, "create settings")
}

func (r *GormSettingsRepository) Merge(ctx context.Context, patch models.SettingsPatch) error {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if patch.AllowSignups != nil {
		updates["allow_signups"] = *patch.AllowSignups
	}
	if patch.ContactNumber != nil {
		updates["contact_number"] = *patch.ContactNumber
	}
	if patch.MinOrderQuantity != nil {
		updates["min_order_quantity"] = *patch.MinOrderQuantity
	}
	res := r.db.WithContext(ctx).Model(&settingsRow{}).
		Where("id = ?", models.SettingsKey).
		Updates(updates)
	if res.Error != nil {
		return errors.Wrap(res.Error, "update settings")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Users ───────────────────────────────────────────────────────────────────

type GormUserRepository struct {
	db *gorm.DB
}

func (r *GormUserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, ErrNotFound
	}
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, n).Error; err != nil {
		return nil, translate(err)
	}
	u := row.toModel()
	return &u, nil
}

func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	u := row.toModel()
	return &u, nil
}

func (r *GormUserRepository) Create(ctx context.Context, u *models.User) error {
	var existing int64
	if err := r.db.WithContext(ctx).Model(&userRow{}).Where("email = ?", u.Email).Count(&existing).Error; err != nil {
		return errors.Wrap(err, "check email")
	}
	if existing > 0 {
		return ErrDuplicate
	}
	role := u.Role
	if role == "" {
		role = models.RoleUser
	}
	row := userRow{
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         role,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Wrap(translate(err), "create user")
	}
	*u = row.toModel()
	return nil
}

// SetRole changes a user's role; used by operators and tests.
func (r *GormUserRepository) SetRole(ctx context.Context, id string, role models.Role) error {
	n, ok := parseID(id)
	if !ok {
		return ErrNotFound
	}
	res := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", n).Update("role", role)
	if res.Error != nil {
		return errors.Wrap(res.Error, "set role")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ── Maintenance ─────────────────────────────────────────────────────────────

type gormMaintenance struct {
	db *gorm.DB
}

func (m *gormMaintenance) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return errors.Wrap(err, "access connection pool")
	}
	return errors.Wrap(sqlDB.PingContext(ctx), "ping database")
}

func (m *gormMaintenance) Init(ctx context.Context, defaults models.Settings) error {
	if err := Migrate(m.db.WithContext(ctx)); err != nil {
		return err
	}
	return (&GormSettingsRepository{db: m.db}).CreateIfAbsent(ctx, defaults)
}
