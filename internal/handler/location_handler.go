package handler

import (
	"encoding/json"
	"errors"
	"image"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"sublease-service/internal/geocoder"
	"sublease-service/internal/middleware"
	"sublease-service/internal/model"
	"sublease-service/internal/repository"
	"sublease-service/internal/service"

	_ "image/jpeg"
	_ "image/png"
)

// LocationHandler manages all listing operations.
type LocationHandler struct {
	Svc     *service.LocationService
	Watcher *repository.Watcher
}

// RegisterRoutes wires the listing routes. Browsing is public; anything
// that touches a user's own listings requires auth.
func (h *LocationHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.GET("/locations", h.List)
	public.GET("/locations/:id", h.GetByID)
	public.GET("/locations/:id/photos", h.Photos)
	public.GET("/watch/locations", h.Watch)

	protected.GET("/users/me/locations", h.Mine)
	protected.POST("/locations", h.Create)
	protected.PUT("/locations/:id", h.Update)
	protected.DELETE("/locations/:id", h.Delete)
	protected.DELETE("/locations/:id/photos", h.RemovePhoto)
}

// LocationRequestDTO is the JSON part of a create/update submission.
type LocationRequestDTO struct {
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Price     float64 `json:"price"`
	Negotiate bool    `json:"negotiate"`
	Parking   bool    `json:"parking"`
	Bedrooms  int     `json:"bedrooms"`
	Amenities string  `json:"amenities"`
}

// GET /api/locations
func (h *LocationHandler) List(c *gin.Context) {
	list, err := h.Svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []model.Location{}
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/watch/locations streams full-collection snapshots as
// server-sent events until the client goes away.
func (h *LocationHandler) Watch(c *gin.Context) {
	sub, err := h.Watcher.Subscribe(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer sub.Close()

	c.Stream(func(w io.Writer) bool {
		select {
		case snapshot, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent("snapshot", snapshot)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GET /api/locations/:id
func (h *LocationHandler) GetByID(c *gin.Context) {
	loc, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

// GET /api/locations/:id/photos returns the stored photo metadata for
// one listing.
func (h *LocationHandler) Photos(c *gin.Context) {
	photos, err := h.Svc.Photos(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if photos == nil {
		photos = []model.Photo{}
	}
	c.JSON(http.StatusOK, photos)
}

// GET /api/users/me/locations
func (h *LocationHandler) Mine(c *gin.Context) {
	list, err := h.Svc.ByOwner(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []model.Location{}
	}
	c.JSON(http.StatusOK, list)
}

// POST /api/locations creates a listing from a multipart form: a
// "location" JSON part plus zero or more "photos" image files.
func (h *LocationHandler) Create(c *gin.Context) {
	req, photos, ok := h.bindForm(c)
	if !ok {
		return
	}

	loc := &model.Location{
		Name:      req.Name,
		Address:   req.Address,
		Email:     req.Email,
		Phone:     req.Phone,
		Price:     req.Price,
		Negotiate: req.Negotiate,
		Parking:   req.Parking,
		Bedrooms:  req.Bedrooms,
		Amenities: req.Amenities,
	}

	results, err := h.Svc.Save(c.Request.Context(), middleware.UserID(c), loc, photos)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"location": loc, "photos": photoResults(results)})
}

// PUT /api/locations/:id edits a listing; newly attached photos are
// appended to the existing photo list.
func (h *LocationHandler) Update(c *gin.Context) {
	req, photos, ok := h.bindForm(c)
	if !ok {
		return
	}

	current, err := h.Svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}

	current.Name = req.Name
	current.Address = req.Address
	current.Email = req.Email
	current.Phone = req.Phone
	current.Price = req.Price
	current.Negotiate = req.Negotiate
	current.Parking = req.Parking
	current.Bedrooms = req.Bedrooms
	current.Amenities = req.Amenities

	results, err := h.Svc.Save(c.Request.Context(), middleware.UserID(c), current, photos)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": current, "photos": photoResults(results)})
}

// DELETE /api/locations/:id
func (h *LocationHandler) Delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

// DELETE /api/locations/:id/photos?url=...
func (h *LocationHandler) RemovePhoto(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	loc, err := h.Svc.RemovePhoto(c.Request.Context(), middleware.UserID(c), c.Param("id"), url)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, loc)
}

func (h *LocationHandler) bindForm(c *gin.Context) (LocationRequestDTO, []image.Image, bool) {
	var req LocationRequestDTO

	raw := c.PostForm("location")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location part is required"})
		return req, nil, false
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return req, nil, false
	}
	if req.Address == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "address is required"})
		return req, nil, false
	}
	if req.Bedrooms < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bedrooms must not be negative"})
		return req, nil, false
	}
	if req.Price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "price must not be negative"})
		return req, nil, false
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return req, nil, false
	}

	var photos []image.Image
	for _, fh := range form.File["photos"] {
		img, err := decodeImage(fh)
		if err != nil {
			// an unreadable selection drops just that photo
			log.Warn().Err(err).Str("file", fh.Filename).Msg("skipping photo")
			continue
		}
		photos = append(photos, img)
	}
	return req, photos, true
}

func decodeImage(fh *multipart.FileHeader) (image.Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}

func (h *LocationHandler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "location not found"})
	case errors.Is(err, repository.ErrBlobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
	case errors.Is(err, repository.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "not the owner of this location"})
	case errors.Is(err, geocoder.ErrNoResults):
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not resolve address"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type photoResultDTO struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Error string `json:"error,omitempty"`
}

func photoResults(results []service.UploadResult) []photoResultDTO {
	out := make([]photoResultDTO, 0, len(results))
	for _, res := range results {
		dto := photoResultDTO{Index: res.Index, Name: res.Name, URL: res.URL}
		if res.Err != nil {
			dto.Error = res.Err.Error()
		}
		out = append(out, dto)
	}
	return out
}
