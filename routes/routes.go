package routes

import (
	"github.com/gin-gonic/gin"

	"storefront-api/cache"
	"storefront-api/handlers"
	"storefront-api/middleware"
)

// SetupRoutes registers the API on r. pages may be nil to disable response
// caching.
func SetupRoutes(r *gin.Engine, h *handlers.Handler, pages *cache.Pages) {
	cached := func(c *gin.Context) { c.Next() }
	if pages != nil {
		cached = pages.Middleware()
	}

	// ── Public catalog (cached) ────────────────────────────────────
	catalog := r.Group("/api")
	catalog.Use(cached)
	{
		catalog.GET("/categories", h.ListCategories)
		catalog.GET("/products", h.ListProducts)
		catalog.GET("/products/featured", h.ListFeaturedProducts)
		catalog.GET("/products/:id", h.GetProduct)
		catalog.GET("/banners", h.ListBanners)
		catalog.GET("/settings", h.GetSettings)
	}

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		// Password accounts exist only on the sql backend
		if h.Stores.Users != nil && h.JWT != nil {
			public.POST("/auth/signup", h.Signup)
			public.POST("/auth/login", h.Login)
		}
		public.GET("/auth/session", h.Session)
		public.GET("/auth/state-machine", h.GetStateMachineInfo)

		public.GET("/cart", h.GetCart)
		public.DELETE("/cart", h.ClearCart)
		public.POST("/cart/items", h.AddCartItem)
		public.PUT("/cart/items/:productId", h.UpdateCartItem)
		public.DELETE("/cart/items/:productId", h.RemoveCartItem)

		public.GET("/images/*filepath", h.ServeImage)
		public.GET("/db-test", h.DBTest)
	}

	// ── Authenticated routes ───────────────────────────────────────
	authed := r.Group("/api")
	authed.Use(middleware.AuthRequired(h.Tokens))
	{
		authed.GET("/auth/me", h.Me)
	}

	// ── Admin routes ───────────────────────────────────────────────
	adminOnly := []gin.HandlerFunc{middleware.AuthRequired(h.Tokens), middleware.AdminRequired(h.Roles)}

	ops := r.Group("/api")
	ops.Use(adminOnly...)
	{
		ops.POST("/settings", h.UpdateSettings)
		ops.POST("/db-init", h.DBInit)
		ops.POST("/upload", h.Upload)
	}

	admin := r.Group("/api/admin")
	admin.Use(adminOnly...)
	{
		admin.POST("/categories", h.AddCategory)
		admin.DELETE("/categories/:id", h.DeleteCategory)

		admin.POST("/products", h.AddProduct)
		admin.PUT("/products/:id", h.UpdateProduct)
		admin.DELETE("/products/:id", h.DeleteProduct)
		admin.GET("/products/export", h.ExportProducts)

		admin.POST("/banners", h.AddBanner)
		admin.DELETE("/banners/:id", h.DeleteBanner)
	}
}
