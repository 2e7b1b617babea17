package service

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"sublease-service/internal/model"
	"sublease-service/internal/repository"
)

// LocationStore is the document store the service persists listings to.
type LocationStore interface {
	List(ctx context.Context) ([]model.Location, error)
	ByOwner(ctx context.Context, ownerID string) ([]model.Location, error)
	GetByID(ctx context.Context, id string) (*model.Location, error)
	Save(ctx context.Context, l *model.Location) error
	Delete(ctx context.Context, id, ownerID string) error
}

// Geocoder resolves a listing's address before anything is persisted.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (model.Coordinate, error)
}

// LocationService owns the listing lifecycle: browse, save with geocoding
// and photo uploads, delete, and per-photo removal.
type LocationService struct {
	repo     LocationStore
	geo      Geocoder
	photos   PhotoStore
	pipeline *PhotoPipeline
}

func NewLocationService(repo LocationStore, geo Geocoder, photos PhotoStore) *LocationService {
	return &LocationService{
		repo:     repo,
		geo:      geo,
		photos:   photos,
		pipeline: &PhotoPipeline{Store: photos},
	}
}

func (s *LocationService) List(ctx context.Context) ([]model.Location, error) {
	return s.repo.List(ctx)
}

func (s *LocationService) ByOwner(ctx context.Context, ownerID string) ([]model.Location, error) {
	return s.repo.ByOwner(ctx, ownerID)
}

func (s *LocationService) Get(ctx context.Context, id string) (*model.Location, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *LocationService) Photos(ctx context.Context, locationID string) ([]model.Photo, error) {
	return s.photos.ListByLocation(ctx, locationID)
}

// Save runs the listing save flow: fix the owner, geocode the address,
// upload any newly selected photos, then persist the document. Geocoding
// happens first; when it fails nothing has been uploaded or written.
func (s *LocationService) Save(ctx context.Context, userID string, loc *model.Location, photos []image.Image) ([]UploadResult, error) {
	if loc.ID == "" {
		loc.OwnerID = userID
	} else {
		current, err := s.repo.GetByID(ctx, loc.ID)
		if err != nil {
			return nil, fmt.Errorf("LocationService.Save: %w", err)
		}
		if current.OwnerID != userID {
			return nil, repository.ErrNotOwner
		}
		// the owner was set at creation and never changes
		loc.OwnerID = current.OwnerID
	}

	coord, err := s.geo.Geocode(ctx, loc.Address)
	if err != nil {
		return nil, fmt.Errorf("LocationService.Save: geocode: %w", err)
	}
	loc.Latitude = coord.Latitude
	loc.Longitude = coord.Longitude

	var results []UploadResult
	if len(photos) > 0 {
		// unsaved listings get a placeholder namespace for their blobs
		namespace := loc.ID
		if namespace == "" {
			namespace = uuid.NewString()
		}
		results = s.pipeline.Upload(ctx, namespace, photos)
		for _, res := range results {
			if res.Err != nil {
				log.Warn().Err(res.Err).Str("name", res.Name).Msg("photo dropped from batch")
			}
		}
		loc.PhotoURLs = append(loc.PhotoURLs, SuccessfulURLs(results)...)
	}

	if err := s.repo.Save(ctx, loc); err != nil {
		return results, fmt.Errorf("LocationService.Save: %w", err)
	}
	return results, nil
}

// Delete removes the listing's document for its owner. Stored photo blobs
// stay behind; the document is the only thing removed.
func (s *LocationService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return fmt.Errorf("LocationService.Delete: %w", err)
	}
	return nil
}

// RemovePhoto drops one URL from the listing's photo list and deletes the
// backing blob when the URL is one this service issued.
func (s *LocationService) RemovePhoto(ctx context.Context, userID, id, url string) (*model.Location, error) {
	loc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("LocationService.RemovePhoto: %w", err)
	}
	if loc.OwnerID != userID {
		return nil, repository.ErrNotOwner
	}

	idx := -1
	for i, u := range loc.PhotoURLs {
		if u == url {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("LocationService.RemovePhoto: %w", repository.ErrBlobNotFound)
	}
	loc.PhotoURLs = append(loc.PhotoURLs[:idx], loc.PhotoURLs[idx+1:]...)

	if err := s.repo.Save(ctx, loc); err != nil {
		return nil, fmt.Errorf("LocationService.RemovePhoto: %w", err)
	}

	if name, ok := photoNameFromURL(url); ok {
		if err := s.photos.Delete(ctx, name); err != nil {
			log.Warn().Err(err).Str("name", name).Msg("photo blob not removed")
		}
	}
	return loc, nil
}

func photoNameFromURL(url string) (string, bool) {
	const marker = "/api/photos/"
	i := strings.Index(url, marker)
	if i < 0 {
		return "", false
	}
	return url[i+len(marker):], true
}
