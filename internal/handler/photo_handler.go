package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"sublease-service/internal/repository"
)

// PhotoHandler serves stored photo blobs at their public download URLs.
type PhotoHandler struct {
	Repo *repository.PhotoRepository
}

func (h *PhotoHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/photos/*name", h.Download)
}

// GET /api/photos/locations/:id/photo<index>.jpg
func (h *PhotoHandler) Download(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")
	if !strings.HasPrefix(name, "locations/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	data, err := h.Repo.Download(name)
	if err != nil {
		if errors.Is(err, repository.ErrBlobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "download failed"})
		return
	}

	c.Header("Content-Disposition", "inline")
	c.Data(http.StatusOK, "image/jpeg", data)
}
