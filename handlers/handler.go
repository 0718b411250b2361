package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"storefront-api/auth"
	"storefront-api/cart"
	"storefront-api/middleware"
	"storefront-api/services"
	"storefront-api/storage"
	"storefront-api/store"
)

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Stores     *store.Stores
	Categories *services.CategoryService
	Products   *services.ProductService
	Banners    *services.BannerService
	Settings   *services.SettingsService
	Accounts   *services.AccountService

	Uploader storage.Uploader
	// Images serves local uploads; nil when uploads go to a bucket.
	Images *storage.Local

	Tokens middleware.TokenVerifier
	// JWT issues tokens for password logins; nil on the firestore backend.
	JWT   *middleware.JWT
	Roles auth.RoleResolver
	Carts *cart.Sessions

	MaxUploadBytes int64
	AllowedOrigins []string
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 10 << 20
	}
	return &Handler{Deps: d}
}

// respondError maps service and storage errors onto HTTP answers. Anything
// unexpected is logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": verr.Fields})
	case errors.Is(err, storage.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is empty"})
	case errors.Is(err, storage.ErrOutsideRoot):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload path"})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": services.Message(err)})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": services.Message(err)})
	case errors.Is(err, services.ErrIncorrectPassword):
		c.JSON(http.StatusUnauthorized, gin.H{"error": services.Message(err)})
	case errors.Is(err, services.ErrSignupsDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": services.Message(err)})
	default:
		zap.L().Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": services.Message(err)})
	}
}

// limitBody caps request bodies of upload endpoints.
func (h *Handler) limitBody(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)
}

// formFile returns the named multipart file, or nil when the field is absent.
// The caller closes the returned closer when it is not nil.
func formFile(c *gin.Context, field string) (*storage.File, io.Closer, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		verr := &services.ValidationError{}
		verr.Add(field, "could not read upload")
		zap.L().Debug("multipart read failed", zap.String("field", field), zap.Error(err))
		return nil, nil, verr
	}
	f, closer, err := storage.FromMultipart(fh)
	if err != nil {
		return nil, nil, err
	}
	return &f, closer, nil
}

func closeQuietly(cl io.Closer) {
	if cl != nil {
		_ = cl.Close()
	}
}
