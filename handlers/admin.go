package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront-api/services"
)

// AddCategory creates a category (admin)
func (h *Handler) AddCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name" form:"name"`
	}
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, services.FieldErrors(err))
		return
	}
	category, err := h.Categories.Add(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Category created", "category": category})
}

// DeleteCategory removes an unused category (admin)
func (h *Handler) DeleteCategory(c *gin.Context) {
	if err := h.Categories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

// AddProduct creates a product from a multipart form (admin)
func (h *Handler) AddProduct(c *gin.Context) {
	h.limitBody(c)
	var form services.ProductForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, services.FieldErrors(err))
		return
	}
	image, closer, err := formFile(c, "image")
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeQuietly(closer)

	product, err := h.Products.Add(c.Request.Context(), form, image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Product created", "product": product})
}

// UpdateProduct rewrites a product; the image is optional (admin)
func (h *Handler) UpdateProduct(c *gin.Context) {
	h.limitBody(c)
	var form services.ProductForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, services.FieldErrors(err))
		return
	}
	image, closer, err := formFile(c, "image")
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeQuietly(closer)

	product, err := h.Products.Update(c.Request.Context(), c.Param("id"), form, image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product updated", "product": product})
}

// DeleteProduct removes a product and, best-effort, its image (admin)
func (h *Handler) DeleteProduct(c *gin.Context) {
	if err := h.Products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

// AddBanner creates an active banner (admin)
func (h *Handler) AddBanner(c *gin.Context) {
	h.limitBody(c)
	var form services.BannerForm
	if err := c.ShouldBind(&form); err != nil {
		respondError(c, services.FieldErrors(err))
		return
	}
	image, closer, err := formFile(c, "image")
	if err != nil {
		respondError(c, err)
		return
	}
	defer closeQuietly(closer)

	banner, err := h.Banners.Add(c.Request.Context(), form, image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Banner created", "banner": banner})
}

// DeleteBanner removes a banner (admin)
func (h *Handler) DeleteBanner(c *gin.Context) {
	if err := h.Banners.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Banner deleted"})
}

// UpdateSettings merges a JSON object or form fields into the settings (admin)
func (h *Handler) UpdateSettings(c *gin.Context) {
	input := map[string]interface{}{}
	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		if err := c.ShouldBindJSON(&input); err != nil {
			respondError(c, services.FieldErrors(err))
			return
		}
	} else {
		if err := c.Request.ParseMultipartForm(1 << 20); err != nil && err != http.ErrNotMultipart {
			respondError(c, services.FieldErrors(err))
			return
		}
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				input[k] = v[len(v)-1]
			}
		}
	}

	patch, err := services.DecodePatch(input)
	if err != nil {
		respondError(c, err)
		return
	}
	settings, err := h.Settings.Update(c.Request.Context(), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Settings updated", "settings": settings})
}

// DBTest checks connectivity of the active backend
func (h *Handler) DBTest(c *gin.Context) {
	if err := h.Stores.Maintenance.Ping(c.Request.Context()); err != nil {
		zap.L().Error("database ping failed", zap.String("backend", h.Stores.Backend), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "backend": h.Stores.Backend, "error": "Database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": h.Stores.Backend})
}

// DBInit prepares the schema and seeds the settings record (admin)
func (h *Handler) DBInit(c *gin.Context) {
	if err := h.Stores.Maintenance.Init(c.Request.Context(), h.Settings.Defaults()); err != nil {
		respondError(c, err)
		return
	}
	zap.L().Info("database initialized", zap.String("backend", h.Stores.Backend))
	c.JSON(http.StatusOK, gin.H{"message": "Database initialized", "backend": h.Stores.Backend})
}
