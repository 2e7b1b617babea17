package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"sublease-service/internal/model"
)

var (
	// ErrNotFound signals the listing does not exist in the store.
	ErrNotFound = errors.New("location not found")
	// ErrNotOwner signals the caller is not the listing's owner.
	ErrNotOwner = errors.New("location owned by another user")
)

const schema = `
CREATE TABLE IF NOT EXISTS locations (
    id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    owner_id    TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    address     TEXT NOT NULL DEFAULT '',
    email       TEXT NOT NULL DEFAULT '',
    phone       TEXT NOT NULL DEFAULT '',
    price       DOUBLE PRECISION NOT NULL DEFAULT 0,
    negotiate   BOOLEAN NOT NULL DEFAULT FALSE,
    parking     BOOLEAN NOT NULL DEFAULT FALSE,
    bedrooms    INTEGER NOT NULL DEFAULT 0 CHECK (bedrooms >= 0),
    amenities   TEXT NOT NULL DEFAULT '',
    latitude    DOUBLE PRECISION NOT NULL DEFAULT 0,
    longitude   DOUBLE PRECISION NOT NULL DEFAULT 0,
    photo_urls  TEXT[] NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE OR REPLACE FUNCTION locations_notify() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify('locations_changed', TG_OP);
    RETURN NULL;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS locations_notify_trigger ON locations;
CREATE TRIGGER locations_notify_trigger
    AFTER INSERT OR UPDATE OR DELETE ON locations
    FOR EACH STATEMENT EXECUTE FUNCTION locations_notify();
`

type LocationRepository struct {
	DB *sqlx.DB
}

func NewLocationRepository(db *sqlx.DB) *LocationRepository {
	return &LocationRepository{DB: db}
}

// EnsureSchema creates the locations table and its notify trigger.
func (r *LocationRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("LocationRepository.EnsureSchema: %w", err)
	}
	return nil
}

// List returns every listing in store order.
func (r *LocationRepository) List(ctx context.Context) ([]model.Location, error) {
	var list []model.Location
	err := r.DB.SelectContext(ctx, &list, `
		SELECT id, owner_id, name, address, email, phone, price, negotiate,
		       parking, bedrooms, amenities, latitude, longitude, photo_urls
		FROM locations
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("LocationRepository.List: %w", err)
	}
	return list, nil
}

// ByOwner returns the listings posted by one user.
func (r *LocationRepository) ByOwner(ctx context.Context, ownerID string) ([]model.Location, error) {
	var list []model.Location
	err := r.DB.SelectContext(ctx, &list, `
		SELECT id, owner_id, name, address, email, phone, price, negotiate,
		       parking, bedrooms, amenities, latitude, longitude, photo_urls
		FROM locations
		WHERE owner_id = $1
		ORDER BY created_at ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("LocationRepository.ByOwner: %w", err)
	}
	return list, nil
}

// GetByID returns one listing by its store-assigned identifier.
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*model.Location, error) {
	var l model.Location
	err := r.DB.GetContext(ctx, &l, `
		SELECT id, owner_id, name, address, email, phone, price, negotiate,
		       parking, bedrooms, amenities, latitude, longitude, photo_urls
		FROM locations
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("LocationRepository.GetByID: %w", err)
	}
	return &l, nil
}

// Save inserts the listing when it has no identifier yet, assigning one,
// and otherwise overwrites the stored fields in place. The owner is written
// only on insert and never touched by an update.
func (r *LocationRepository) Save(ctx context.Context, l *model.Location) error {
	if l.ID == "" {
		err := r.DB.QueryRowContext(ctx, `
			INSERT INTO locations
			    (owner_id, name, address, email, phone, price, negotiate,
			     parking, bedrooms, amenities, latitude, longitude, photo_urls)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id
		`, l.OwnerID, l.Name, l.Address, l.Email, l.Phone, l.Price, l.Negotiate,
			l.Parking, l.Bedrooms, l.Amenities, l.Latitude, l.Longitude, l.PhotoURLs,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("LocationRepository.Save insert: %w", err)
		}
		return nil
	}

	res, err := r.DB.ExecContext(ctx, `
		UPDATE locations SET
		    name       = $1,
		    address    = $2,
		    email      = $3,
		    phone      = $4,
		    price      = $5,
		    negotiate  = $6,
		    parking    = $7,
		    bedrooms   = $8,
		    amenities  = $9,
		    latitude   = $10,
		    longitude  = $11,
		    photo_urls = $12,
		    updated_at = now()
		WHERE id = $13
	`, l.Name, l.Address, l.Email, l.Phone, l.Price, l.Negotiate, l.Parking,
		l.Bedrooms, l.Amenities, l.Latitude, l.Longitude, l.PhotoURLs, l.ID)
	if err != nil {
		return fmt.Errorf("LocationRepository.Save update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("LocationRepository.Save update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the listing's document. Only the owner may delete it;
// stored photo blobs are not touched.
func (r *LocationRepository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM locations WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("LocationRepository.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("LocationRepository.Delete: %w", err)
	}
	if n > 0 {
		return nil
	}

	var owner string
	err = r.DB.GetContext(ctx, &owner, `SELECT owner_id FROM locations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("LocationRepository.Delete: %w", err)
	}
	return ErrNotOwner
}
