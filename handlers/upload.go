package handlers

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"storefront-api/services"
	"storefront-api/storage"
)

// Upload stores a multipart "file" under the folder given as "path" (admin)
func (h *Handler) Upload(c *gin.Context) {
	h.limitBody(c)
	file, closer, err := formFile(c, "file")
	if err != nil {
		respondError(c, err)
		return
	}
	if file == nil {
		verr := &services.ValidationError{}
		verr.Add("file", "is required")
		respondError(c, verr)
		return
	}
	defer closeQuietly(closer)

	url, err := h.Uploader.Upload(c.Request.Context(), c.PostForm("path"), *file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// ServeImage streams a file from the local upload root
func (h *Handler) ServeImage(c *gin.Context) {
	if h.Images == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	}
	f, info, err := h.Images.Open(strings.TrimPrefix(c.Param("filepath"), "/"))
	switch {
	case errors.Is(err, storage.ErrOutsideRoot):
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	case errors.Is(err, os.ErrNotExist):
		c.JSON(http.StatusNotFound, gin.H{"error": "Image not found"})
		return
	case err != nil:
		zap.L().Error("open image failed", zap.String("path", c.Param("filepath")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": services.Message(err)})
		return
	}
	defer f.Close()

	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "public, max-age=86400")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}
