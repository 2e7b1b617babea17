package model

import "github.com/lib/pq"

// Location is one sublease posting.
type Location struct {
	ID        string         `db:"id" json:"id"`
	OwnerID   string         `db:"owner_id" json:"ownerId"`
	Name      string         `db:"name" json:"name"`
	Address   string         `db:"address" json:"address"`
	Email     string         `db:"email" json:"email"`
	Phone     string         `db:"phone" json:"phone"`
	Price     float64        `db:"price" json:"price"`
	Negotiate bool           `db:"negotiate" json:"negotiate"`
	Parking   bool           `db:"parking" json:"parking"`
	Bedrooms  int            `db:"bedrooms" json:"bedrooms"`
	Amenities string         `db:"amenities" json:"amenities"`
	Latitude  float64        `db:"latitude" json:"latitude"`
	Longitude float64        `db:"longitude" json:"longitude"`
	PhotoURLs pq.StringArray `db:"photo_urls" json:"photoUrls"`
}

// Coordinate is derived for map display, never stored on its own.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l *Location) Coordinate() Coordinate {
	return Coordinate{Latitude: l.Latitude, Longitude: l.Longitude}
}
