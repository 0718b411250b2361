package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"storefront-api/cart"
	"storefront-api/services"
)

type AddCartItemRequest struct {
	ProductID string `json:"productId" form:"productId" binding:"required"`
	Quantity  int    `json:"quantity" form:"quantity" binding:"omitempty,min=1,max=999"`
}

type UpdateCartItemRequest struct {
	// Zero or less removes the line.
	Quantity int `json:"quantity" form:"quantity" binding:"max=999"`
}

// GetCart returns the priced cart of the caller's session
func (h *Handler) GetCart(c *gin.Context) {
	h.respondCart(c, h.Carts.Load(c.Request))
}

// AddCartItem adds a product to the cart, merging with an existing line
func (h *Handler) AddCartItem(c *gin.Context) {
	var req AddCartItemRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, services.FieldErrors(err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if _, err := h.Products.GetByID(c.Request.Context(), req.ProductID); err != nil {
		respondError(c, err)
		return
	}

	crt := h.Carts.Load(c.Request)
	if err := crt.Add(req.ProductID, req.Quantity); err != nil {
		verr := &services.ValidationError{}
		verr.Add("quantity", err.Error())
		respondError(c, verr)
		return
	}
	h.respondCart(c, crt)
}

// UpdateCartItem sets the quantity of a line
func (h *Handler) UpdateCartItem(c *gin.Context) {
	var req UpdateCartItemRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, services.FieldErrors(err))
		return
	}
	crt := h.Carts.Load(c.Request)
	if !crt.SetQuantity(c.Param("productId"), req.Quantity) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product is not in the cart"})
		return
	}
	h.respondCart(c, crt)
}

// RemoveCartItem drops a line from the cart
func (h *Handler) RemoveCartItem(c *gin.Context) {
	crt := h.Carts.Load(c.Request)
	if !crt.Remove(c.Param("productId")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product is not in the cart"})
		return
	}
	h.respondCart(c, crt)
}

// ClearCart empties the cart
func (h *Handler) ClearCart(c *gin.Context) {
	crt := h.Carts.Load(c.Request)
	crt.Clear()
	h.respondCart(c, crt)
}

// respondCart prices crt, saves it (without lines whose products are gone)
// and writes the summary.
func (h *Handler) respondCart(c *gin.Context, crt *cart.Cart) {
	ctx := c.Request.Context()
	settings := h.Settings.Get(ctx)
	summary, err := cart.Price(ctx, crt, h.Products.GetByID, func(err error) bool {
		return errors.Is(err, services.ErrNotFound)
	}, settings.MinOrderQuantity)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Carts.Save(c.Writer, c.Request, crt); err != nil {
		respondError(c, errors.Wrap(err, "save cart"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"cart": summary})
}
