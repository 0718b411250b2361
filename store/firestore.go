package store

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"storefront-api/models"
)

// Collection names of the firestore backend.
const (
	CollectionCategories = "categories"
	CollectionProducts   = "products"
	CollectionBanners    = "banners"
	CollectionSettings   = "settings"
	CollectionUsers      = "users"
)

// NewFirestoreStores wires every repository of the document backend onto one
// Firestore client.
func NewFirestoreStores(client *firestore.Client) *Stores {
	return &Stores{
		Backend:     BackendFirestore,
		Categories:  &FirestoreCategoryRepository{client: client},
		Products:    &FirestoreProductRepository{client: client},
		Banners:     &FirestoreBannerRepository{client: client},
		Settings:    &FirestoreSettingsRepository{client: client},
		Profiles:    &FirestoreProfileRepository{client: client},
		Maintenance: &firestoreMaintenance{client: client},
	}
}

func isNotFound(err error) bool {
	return status.Code(errors.Cause(err)) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(errors.Cause(err)) == codes.AlreadyExists
}

func getDoc(ctx context.Context, ref *firestore.DocumentRef, dst interface{}) error {
	snap, err := ref.Get(ctx)
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrapf(err, "get %s", ref.Path)
	}
	return errors.Wrapf(snap.DataTo(dst), "decode %s", ref.Path)
}

func deleteDoc(ctx context.Context, ref *firestore.DocumentRef) error {
	_, err := ref.Delete(ctx, firestore.Exists)
	if isNotFound(err) {
		return ErrNotFound
	}
	return errors.Wrapf(err, "delete %s", ref.Path)
}

// ── Categories ──────────────────────────────────────────────────────────────

type categoryDoc struct {
	Name      string    `firestore:"name"`
	NameLower string    `firestore:"nameLower"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type FirestoreCategoryRepository struct {
	client *firestore.Client
}

func (r *FirestoreCategoryRepository) col() *firestore.CollectionRef {
	return r.client.Collection(CollectionCategories)
}

func (r *FirestoreCategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	snaps, err := r.col().OrderBy("name", firestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	out := make([]models.Category, 0, len(snaps))
	for _, snap := range snaps {
		var doc categoryDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Wrapf(err, "decode category %s", snap.Ref.ID)
		}
		out = append(out, models.Category{ID: snap.Ref.ID, Name: doc.Name, CreatedAt: doc.CreatedAt})
	}
	return out, nil
}

func (r *FirestoreCategoryRepository) Get(ctx context.Context, id string) (*models.Category, error) {
	var doc categoryDoc
	if err := getDoc(ctx, r.col().Doc(id), &doc); err != nil {
		return nil, err
	}
	return &models.Category{ID: id, Name: doc.Name, CreatedAt: doc.CreatedAt}, nil
}

func (r *FirestoreCategoryRepository) FindByName(ctx context.Context, name string) (*models.Category, error) {
	snaps, err := r.col().Where("nameLower", "==", strings.ToLower(name)).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "find category")
	}
	if len(snaps) == 0 {
		return nil, ErrNotFound
	}
	var doc categoryDoc
	if err := snaps[0].DataTo(&doc); err != nil {
		return nil, errors.Wrap(err, "decode category")
	}
	return &models.Category{ID: snaps[0].Ref.ID, Name: doc.Name, CreatedAt: doc.CreatedAt}, nil
}

func (r *FirestoreCategoryRepository) Create(ctx context.Context, c *models.Category) error {
	now := time.Now().UTC()
	ref, _, err := r.col().Add(ctx, categoryDoc{Name: c.Name, NameLower: strings.ToLower(c.Name), CreatedAt: now})
	if err != nil {
		return errors.Wrap(err, "create category")
	}
	c.ID = ref.ID
	c.CreatedAt = now
	return nil
}

func (r *FirestoreCategoryRepository) Delete(ctx context.Context, id string) error {
	return deleteDoc(ctx, r.col().Doc(id))
}

// ── Products ────────────────────────────────────────────────────────────────

// productDoc stores price in dollars; legacy documents may lack it.
type productDoc struct {
	Name        string         `firestore:"name"`
	Description string         `firestore:"description"`
	Price       *float64       `firestore:"price"`
	Category    string         `firestore:"category"`
	ImageURL    string         `firestore:"imageUrl"`
	Details     []string       `firestore:"details"`
	Featured    bool           `firestore:"featured"`
	Recipe      *models.Recipe `firestore:"recipe"`
	CreatedAt   time.Time      `firestore:"createdAt"`
	UpdatedAt   time.Time      `firestore:"updatedAt"`
}

func (d productDoc) toModel(id string) models.Product {
	price := decimal.Zero
	if d.Price != nil {
		price = decimal.NewFromFloat(*d.Price).Round(2)
	}
	details := d.Details
	if details == nil {
		details = []string{}
	}
	return models.Product{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Price:       price,
		Category:    d.Category,
		ImageURL:    d.ImageURL,
		Details:     details,
		Featured:    d.Featured,
		Recipe:      d.Recipe,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func productDocFrom(p *models.Product) productDoc {
	price := p.Price.InexactFloat64()
	details := p.Details
	if details == nil {
		details = []string{}
	}
	return productDoc{
		Name:        p.Name,
		Description: p.Description,
		Price:       &price,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Details:     details,
		Featured:    p.Featured,
		Recipe:      p.Recipe,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type FirestoreProductRepository struct {
	client *firestore.Client
}

func (r *FirestoreProductRepository) col() *firestore.CollectionRef {
	return r.client.Collection(CollectionProducts)
}

func (r *FirestoreProductRepository) List(ctx context.Context) ([]models.Product, error) {
	return r.find(ctx, r.col().Query)
}

func (r *FirestoreProductRepository) ListFeatured(ctx context.Context) ([]models.Product, error) {
	return r.find(ctx, r.col().Where("featured", "==", true))
}

func (r *FirestoreProductRepository) find(ctx context.Context, q firestore.Query) ([]models.Product, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	out := make([]models.Product, 0, len(snaps))
	for _, snap := range snaps {
		var doc productDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Wrapf(err, "decode product %s", snap.Ref.ID)
		}
		out = append(out, doc.toModel(snap.Ref.ID))
	}
	// Documents without createdAt would be dropped by an OrderBy clause.
	sortProductsNewestFirst(out)
	return out, nil
}

func (r *FirestoreProductRepository) Get(ctx context.Context, id string) (*models.Product, error) {
	var doc productDoc
	if err := getDoc(ctx, r.col().Doc(id), &doc); err != nil {
		return nil, err
	}
	p := doc.toModel(id)
	return &p, nil
}

func (r *FirestoreProductRepository) Create(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	ref, _, err := r.col().Add(ctx, productDocFrom(p))
	if err != nil {
		return errors.Wrap(err, "create product")
	}
	p.ID = ref.ID
	return nil
}

func (r *FirestoreProductRepository) Update(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now().UTC()
	doc := productDocFrom(p)
	_, err := r.col().Doc(p.ID).Update(ctx, []firestore.Update{
		{Path: "name", Value: doc.Name},
		{Path: "description", Value: doc.Description},
		{Path: "price", Value: doc.Price},
		{Path: "category", Value: doc.Category},
		{Path: "imageUrl", Value: doc.ImageURL},
		{Path: "details", Value: doc.Details},
		{Path: "featured", Value: doc.Featured},
		{Path: "recipe", Value: doc.Recipe},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	})
	if isNotFound(err) {
		return ErrNotFound
	}
	return errors.Wrap(err, "update product")
}

func (r *FirestoreProductRepository) Delete(ctx context.Context, id string) error {
	return deleteDoc(ctx, r.col().Doc(id))
}

func (r *FirestoreProductRepository) CountByCategory(ctx context.Context, name string) (int64, error) {
	snaps, err := r.col().Where("category", "==", name).Select().Documents(ctx).GetAll()
	if err != nil {
		return 0, errors.Wrap(err, "count products by category")
	}
	return int64(len(snaps)), nil
}

// ── Banners ─────────────────────────────────────────────────────────────────

type bannerDoc struct {
	Title     string     `firestore:"title"`
	Subtitle  string     `firestore:"subtitle"`
	ImageURL  string     `firestore:"imageUrl"`
	ProductID string     `firestore:"productId"`
	Active    bool       `firestore:"active"`
	CreatedAt *time.Time `firestore:"createdAt"`
}

func (d bannerDoc) toModel(id string) models.Banner {
	return models.Banner{
		ID:        id,
		Title:     d.Title,
		Subtitle:  d.Subtitle,
		ImageURL:  d.ImageURL,
		ProductID: d.ProductID,
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
	}
}

type FirestoreBannerRepository struct {
	client *firestore.Client
}

func (r *FirestoreBannerRepository) col() *firestore.CollectionRef {
	return r.client.Collection(CollectionBanners)
}

func (r *FirestoreBannerRepository) ListActive(ctx context.Context) ([]models.Banner, error) {
	snaps, err := r.col().Where("active", "==", true).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "list banners")
	}
	out := make([]models.Banner, 0, len(snaps))
	for _, snap := range snaps {
		var doc bannerDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Wrapf(err, "decode banner %s", snap.Ref.ID)
		}
		out = append(out, doc.toModel(snap.Ref.ID))
	}
	return out, nil
}

func (r *FirestoreBannerRepository) Get(ctx context.Context, id string) (*models.Banner, error) {
	var doc bannerDoc
	if err := getDoc(ctx, r.col().Doc(id), &doc); err != nil {
		return nil, err
	}
	b := doc.toModel(id)
	return &b, nil
}

func (r *FirestoreBannerRepository) Create(ctx context.Context, b *models.Banner) error {
	ref, _, err := r.col().Add(ctx, bannerDoc{
		Title:     b.Title,
		Subtitle:  b.Subtitle,
		ImageURL:  b.ImageURL,
		ProductID: b.ProductID,
		Active:    b.Active,
		CreatedAt: b.CreatedAt,
	})
	if err != nil {
		return errors.Wrap(err, "create banner")
	}
	b.ID = ref.ID
	return nil
}

func (r *FirestoreBannerRepository) Delete(ctx context.Context, id string) error {
	return deleteDoc(ctx, r.col().Doc(id))
}

// ── Settings ────────────────────────────────────────────────────────────────

type settingsDoc struct {
	AllowSignups     bool      `firestore:"allowSignups"`
	ContactNumber    string    `firestore:"contactNumber"`
	MinOrderQuantity int       `firestore:"minOrderQuantity"`
	UpdatedAt        time.Time `firestore:"updatedAt"`
}

type FirestoreSettingsRepository struct {
	client *firestore.Client
}

func (r *FirestoreSettingsRepository) ref() *firestore.DocumentRef {
	return r.client.Collection(CollectionSettings).Doc(models.SettingsKey)
}

func (r *FirestoreSettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	var doc settingsDoc
	if err := getDoc(ctx, r.ref(), &doc); err != nil {
		return nil, err
	}
	return &models.Settings{
		AllowSignups:     doc.AllowSignups,
		ContactNumber:    doc.ContactNumber,
		MinOrderQuantity: doc.MinOrderQuantity,
		UpdatedAt:        doc.UpdatedAt,
	}, nil
}

func (r *FirestoreSettingsRepository) CreateIfAbsent(ctx context.Context, s models.Settings) error {
	_, err := r.ref().Create(ctx, settingsDoc{
		AllowSignups:     s.AllowSignups,
		ContactNumber:    s.ContactNumber,
		MinOrderQuantity: s.MinOrderQuantity,
		UpdatedAt:        time.Now().UTC(),
	})
	if isAlreadyExists(err) {
		return nil
	}
	return errors.Wrap(err, "create settings")
}

func (r *FirestoreSettingsRepository) Merge(ctx context.Context, patch models.SettingsPatch) error {
	updates := []firestore.Update{{Path: "updatedAt", Value: time.Now().UTC()}}
	if patch.AllowSignups != nil {
		updates = append(updates, firestore.Update{Path: "allowSignups", Value: *patch.AllowSignups})
	}
	if patch.ContactNumber != nil {
		updates = append(updates, firestore.Update{Path: "contactNumber", Value: *patch.ContactNumber})
	}
	if patch.MinOrderQuantity != nil {
		updates = append(updates, firestore.Update{Path: "minOrderQuantity", Value: *patch.MinOrderQuantity})
	}
	_, err := r.ref().Update(ctx, updates)
	if isNotFound(err) {
		return ErrNotFound
	}
	return errors.Wrap(err, "update settings")
}

// ── Profiles ────────────────────────────────────────────────────────────────

type FirestoreProfileRepository struct {
	client *firestore.Client
}

func (r *FirestoreProfileRepository) Get(ctx context.Context, uid string) (*models.Profile, error) {
	var p models.Profile
	if err := getDoc(ctx, r.client.Collection(CollectionUsers).Doc(uid), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *FirestoreProfileRepository) CreateIfAbsent(ctx context.Context, uid string, p models.Profile) error {
	_, err := r.client.Collection(CollectionUsers).Doc(uid).Create(ctx, p)
	if isAlreadyExists(err) {
		return nil
	}
	return errors.Wrap(err, "create profile")
}

// ── Maintenance ─────────────────────────────────────────────────────────────

type firestoreMaintenance struct {
	client *firestore.Client
}

func (m *firestoreMaintenance) Ping(ctx context.Context) error {
	_, err := m.client.Collection(CollectionSettings).Doc(models.SettingsKey).Get(ctx)
	if err != nil && !isNotFound(err) {
		return errors.Wrap(err, "ping firestore")
	}
	return nil
}

// Init only seeds the settings singleton; collections need no schema.
func (m *firestoreMaintenance) Init(ctx context.Context, defaults models.Settings) error {
	return (&FirestoreSettingsRepository{client: m.client}).CreateIfAbsent(ctx, defaults)
}
