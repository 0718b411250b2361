package services

// Paths whose cached renderings depend on service writes.
const (
	PathHome       = "/"
	PathCategories = "/api/categories"
	PathProducts   = "/api/products"
	PathBanners    = "/api/banners"
	PathSettings   = "/api/settings"
	PathSignup     = "/signup"
	PathLogin      = "/login"
)

// Revalidator drops cached pages after a write. Calls return immediately;
// eviction happens asynchronously.
type Revalidator interface {
	Revalidate(paths ...string)
}

// NopRevalidator discards revalidation requests.
type NopRevalidator struct{}

func (NopRevalidator) Revalidate(...string) {}
