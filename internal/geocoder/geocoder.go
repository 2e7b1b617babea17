package geocoder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nf/geocode"
	"sublease-service/internal/model"
)

// ErrNoResults is returned when the backend has no candidate for an address.
var ErrNoResults = errors.New("could not resolve address")

// Geocoder resolves a free-text address to a single coordinate pair.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (model.Coordinate, error)
}

// Google resolves addresses through the Google geocoding API, taking the
// first candidate it returns.
type Google struct {
	Region string
}

func NewGoogle(region string) *Google {
	return &Google{Region: region}
}

func (g *Google) Geocode(ctx context.Context, address string) (model.Coordinate, error) {
	if strings.TrimSpace(address) == "" {
		return model.Coordinate{}, ErrNoResults
	}

	req := &geocode.Request{
		Provider: geocode.GOOGLE,
		Region:   g.Region,
		Address:  address,
	}
	resp, err := req.Lookup(nil)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if resp.Status != "OK" || resp.GoogleResponse == nil || len(resp.GoogleResponse.Results) == 0 {
		return model.Coordinate{}, ErrNoResults
	}

	loc := resp.GoogleResponse.Results[0].Geometry.Location
	return model.Coordinate{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}
