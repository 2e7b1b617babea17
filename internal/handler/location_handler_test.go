package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"sublease-service/internal/geocoder"
	"sublease-service/internal/middleware"
	"sublease-service/internal/model"
	"sublease-service/internal/repository"
	"sublease-service/internal/service"
)

const testSecret = "test-secret"

type fakeStore struct {
	locations map[string]*model.Location
	nextID    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{locations: map[string]*model.Location{}}
}

func (s *fakeStore) List(context.Context) ([]model.Location, error) {
	var out []model.Location
	for _, l := range s.locations {
		out = append(out, *l)
	}
	return out, nil
}

func (s *fakeStore) ByOwner(_ context.Context, ownerID string) ([]model.Location, error) {
	var out []model.Location
	for _, l := range s.locations {
		if l.OwnerID == ownerID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*model.Location, error) {
	l, ok := s.locations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *fakeStore) Save(_ context.Context, l *model.Location) error {
	if l.ID == "" {
		s.nextID++
		l.ID = fmt.Sprintf("loc-%d", s.nextID)
	}
	cp := *l
	s.locations[l.ID] = &cp
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id, ownerID string) error {
	l, ok := s.locations[id]
	if !ok {
		return repository.ErrNotFound
	}
	if l.OwnerID != ownerID {
		return repository.ErrNotOwner
	}
	delete(s.locations, id)
	return nil
}

type fakeBlobs struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: map[string][]byte{}}
}

func (s *fakeBlobs) Upload(_ context.Context, name string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = b
	return nil
}

func (s *fakeBlobs) DownloadURL(_ context.Context, name string) (string, error) {
	return "http://host/api/photos/" + name, nil
}

func (s *fakeBlobs) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, name)
	return nil
}

func (s *fakeBlobs) ListByLocation(_ context.Context, _ string) ([]model.Photo, error) {
	return nil, nil
}

type fixedGeocoder struct {
	coord model.Coordinate
	err   error
}

func (g fixedGeocoder) Geocode(context.Context, string) (model.Coordinate, error) {
	if g.err != nil {
		return model.Coordinate{}, g.err
	}
	return g.coord, nil
}

func newTestRouter(t *testing.T, store *fakeStore, geo service.Geocoder) *gin.Engine {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)

	gin.SetMode(gin.TestMode)
	svc := service.NewLocationService(store, geo, newFakeBlobs())
	h := &LocationHandler{Svc: svc}

	r := gin.New()
	api := r.Group("/api")
	protected := api.Group("/")
	protected.Use(middleware.JWTAuthMiddleware())
	h.RegisterRoutes(api, protected)
	return r
}

func bearerToken(t *testing.T, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

func locationForm(t *testing.T, dto LocationRequestDTO, photoCount int) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)

	payload, err := json.Marshal(dto)
	if err != nil {
		t.Fatalf("marshal location: %v", err)
	}
	if err := w.WriteField("location", string(payload)); err != nil {
		t.Fatalf("write field: %v", err)
	}

	for i := 0; i < photoCount; i++ {
		fw, err := w.CreateFormFile("photos", fmt.Sprintf("photo%d.jpg", i))
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		img.Set(1, 1, color.RGBA{R: 200, A: 255})
		if err := jpeg.Encode(fw, img, nil); err != nil {
			t.Fatalf("encode test photo: %v", err)
		}
	}

	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func TestCreateRequiresAuth(t *testing.T) {
	r := newTestRouter(t, newFakeStore(), fixedGeocoder{})

	body, contentType := locationForm(t, LocationRequestDTO{Address: "somewhere"}, 0)
	req := httptest.NewRequest(http.MethodPost, "/api/locations", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateListingWithPhotos(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(t, store, fixedGeocoder{coord: model.Coordinate{Latitude: 42.34, Longitude: -71.17}})

	dto := LocationRequestDTO{
		Name:      "Kevin",
		Address:   "140 Commonwealth Ave",
		Email:     "kevin@example.edu",
		Phone:     "555-0140",
		Price:     1200,
		Negotiate: true,
		Bedrooms:  2,
		Amenities: "Laundry, Wifi",
	}
	body, contentType := locationForm(t, dto, 2)

	req := httptest.NewRequest(http.MethodPost, "/api/locations", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Location model.Location `json:"location"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Location.ID == "" {
		t.Fatal("expected an assigned identifier")
	}
	if resp.Location.OwnerID != "user-1" {
		t.Fatalf("owner should come from the token, got %q", resp.Location.OwnerID)
	}
	if resp.Location.Latitude != 42.34 {
		t.Fatalf("latitude not geocoded: %v", resp.Location.Latitude)
	}
	if len(resp.Location.PhotoURLs) != 2 {
		t.Fatalf("expected 2 photo urls, got %v", resp.Location.PhotoURLs)
	}
}

func TestCreateGeocodeFailure(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(t, store, fixedGeocoder{err: geocoder.ErrNoResults})

	body, contentType := locationForm(t, LocationRequestDTO{Address: "nowhere at all"}, 0)
	req := httptest.NewRequest(http.MethodPost, "/api/locations", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(store.locations) != 0 {
		t.Fatal("nothing may be persisted when geocoding fails")
	}
}

func TestDeleteForeignListingForbidden(t *testing.T) {
	store := newFakeStore()
	store.locations["loc-1"] = &model.Location{ID: "loc-1", OwnerID: "alice"}
	r := newTestRouter(t, store, fixedGeocoder{})

	req := httptest.NewRequest(http.MethodDelete, "/api/locations/loc-1", nil)
	req.Header.Set("Authorization", bearerToken(t, "bob"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if _, ok := store.locations["loc-1"]; !ok {
		t.Fatal("listing must survive a forbidden delete")
	}
}

func TestListIsPublic(t *testing.T) {
	store := newFakeStore()
	store.locations["loc-1"] = &model.Location{ID: "loc-1", OwnerID: "alice", Address: "somewhere"}
	r := newTestRouter(t, store, fixedGeocoder{})

	req := httptest.NewRequest(http.MethodGet, "/api/locations", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var list []model.Location
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(list))
	}
}

func TestMineFiltersByOwner(t *testing.T) {
	store := newFakeStore()
	store.locations["loc-1"] = &model.Location{ID: "loc-1", OwnerID: "alice"}
	store.locations["loc-2"] = &model.Location{ID: "loc-2", OwnerID: "bob"}
	r := newTestRouter(t, store, fixedGeocoder{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/me/locations", nil)
	req.Header.Set("Authorization", bearerToken(t, "alice"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var list []model.Location
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 1 || list[0].ID != "loc-1" {
		t.Fatalf("expected only alice's listing, got %+v", list)
	}
}

func TestCreateRejectsNegativeBedrooms(t *testing.T) {
	r := newTestRouter(t, newFakeStore(), fixedGeocoder{})

	body, contentType := locationForm(t, LocationRequestDTO{Address: "somewhere", Bedrooms: -1}, 0)
	req := httptest.NewRequest(http.MethodPost, "/api/locations", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", bearerToken(t, "user-1"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
