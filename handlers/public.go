package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-api/statemachine"
)

// ListCategories returns all categories by name (public)
func (h *Handler) ListCategories(c *gin.Context) {
	categories := h.Categories.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"count": len(categories), "categories": categories})
}

// ListProducts returns the catalog, newest first (public)
func (h *Handler) ListProducts(c *gin.Context) {
	products := h.Products.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"count": len(products), "products": products})
}

// ListFeaturedProducts returns products flagged as featured (public)
func (h *Handler) ListFeaturedProducts(c *gin.Context) {
	products := h.Products.ListFeatured(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"count": len(products), "products": products})
}

// GetProduct returns a single product
func (h *Handler) GetProduct(c *gin.Context) {
	p, err := h.Products.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

// ListBanners returns active banners, newest first (public)
func (h *Handler) ListBanners(c *gin.Context) {
	banners := h.Banners.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"count": len(banners), "banners": banners})
}

// GetSettings returns the settings singleton, creating it on first read
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"settings": h.Settings.Get(c.Request.Context())})
}

// GetStateMachineInfo documents the client auth gate
func (h *Handler) GetStateMachineInfo(c *gin.Context) {
	transitions := statemachine.GetAllTransitions()
	info := make([]gin.H, 0, len(transitions))
	for _, t := range transitions {
		info = append(info, gin.H{"from": t.From, "event": t.Event, "to": t.To})
	}
	c.JSON(http.StatusOK, gin.H{
		"state_machine": info,
		"initial_state": statemachine.Unresolved,
		"login_path":    statemachine.LoginPath,
		"description":   "Client auth gate: admin routes wait while unresolved and redirect non-admins to login",
	})
}
