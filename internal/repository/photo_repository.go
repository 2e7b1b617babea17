package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"sublease-service/internal/model"
)

// ErrBlobNotFound signals no stored photo matches the requested name.
var ErrBlobNotFound = errors.New("photo blob not found")

// PhotoRepository stores photo blobs in GridFS under names of the form
// locations/<listingId>/photo<index>.jpg and resolves the public URL
// each blob is served from.
type PhotoRepository struct {
	DB      *mongo.Database
	BaseURL string
}

func NewPhotoRepository(client *mongo.Client, dbName, baseURL string) *PhotoRepository {
	return &PhotoRepository{DB: client.Database(dbName), BaseURL: baseURL}
}

type gridFile struct {
	ID         primitive.ObjectID `bson:"_id"`
	Name       string             `bson:"filename"`
	Length     int64              `bson:"length"`
	UploadDate time.Time          `bson:"uploadDate"`
}

// Upload writes the blob under name, replacing any prior blob at the
// same name. Re-uploading a listing's photo at the same index overwrites it.
func (r *PhotoRepository) Upload(ctx context.Context, name string, data io.Reader) error {
	bucket, err := gridfs.NewBucket(r.DB)
	if err != nil {
		return fmt.Errorf("PhotoRepository.Upload: %w", err)
	}

	if err := r.deleteByName(ctx, bucket, name); err != nil && !errors.Is(err, ErrBlobNotFound) {
		return fmt.Errorf("PhotoRepository.Upload: %w", err)
	}

	stream, err := bucket.OpenUploadStream(name)
	if err != nil {
		return fmt.Errorf("PhotoRepository.Upload: %w", err)
	}
	defer stream.Close()

	if _, err := io.Copy(stream, data); err != nil {
		return fmt.Errorf("PhotoRepository.Upload: %w", err)
	}
	return nil
}

// DownloadURL returns the publicly resolvable URL for a stored blob.
// It fails if the blob does not exist, so a failed upload never yields a URL.
func (r *PhotoRepository) DownloadURL(ctx context.Context, name string) (string, error) {
	bucket, err := gridfs.NewBucket(r.DB)
	if err != nil {
		return "", fmt.Errorf("PhotoRepository.DownloadURL: %w", err)
	}
	if _, err := r.findByName(ctx, bucket, name); err != nil {
		return "", fmt.Errorf("PhotoRepository.DownloadURL: %w", err)
	}
	return r.BaseURL + "/api/photos/" + name, nil
}

// Download reads a stored blob back for serving.
func (r *PhotoRepository) Download(name string) ([]byte, error) {
	bucket, err := gridfs.NewBucket(r.DB)
	if err != nil {
		return nil, fmt.Errorf("PhotoRepository.Download: %w", err)
	}

	stream, err := bucket.OpenDownloadStreamByName(name)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("PhotoRepository.Download: %w", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("PhotoRepository.Download: %w", err)
	}
	return data, nil
}

// Delete removes the blob stored under name.
func (r *PhotoRepository) Delete(ctx context.Context, name string) error {
	bucket, err := gridfs.NewBucket(r.DB)
	if err != nil {
		return fmt.Errorf("PhotoRepository.Delete: %w", err)
	}
	return r.deleteByName(ctx, bucket, name)
}

// ListByLocation returns metadata for every photo stored for a listing,
// oldest upload first.
func (r *PhotoRepository) ListByLocation(ctx context.Context, locationID string) ([]model.Photo, error) {
	bucket, err := gridfs.NewBucket(r.DB)
	if err != nil {
		return nil, fmt.Errorf("PhotoRepository.ListByLocation: %w", err)
	}

	cursor, err := bucket.Find(bson.M{"filename": bson.M{
		"$regex": "^" + locationPrefix(locationID),
	}})
	if err != nil {
		return nil, fmt.Errorf("PhotoRepository.ListByLocation: %w", err)
	}
	defer cursor.Close(ctx)

	var photos []model.Photo
	for cursor.Next(ctx) {
		var f gridFile
		if err := cursor.Decode(&f); err != nil {
			return nil, fmt.Errorf("PhotoRepository.ListByLocation: %w", err)
		}
		photos = append(photos, model.Photo{
			Name:       f.Name,
			URL:        r.BaseURL + "/api/photos/" + f.Name,
			Length:     f.Length,
			UploadedAt: f.UploadDate,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("PhotoRepository.ListByLocation: %w", err)
	}
	return photos, nil
}

func (r *PhotoRepository) findByName(ctx context.Context, bucket *gridfs.Bucket, name string) (*gridFile, error) {
	cursor, err := bucket.Find(bson.M{"filename": name})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if !cursor.Next(ctx) {
		if err := cursor.Err(); err != nil {
			return nil, err
		}
		return nil, ErrBlobNotFound
	}
	var f gridFile
	if err := cursor.Decode(&f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PhotoRepository) deleteByName(ctx context.Context, bucket *gridfs.Bucket, name string) error {
	f, err := r.findByName(ctx, bucket, name)
	if err != nil {
		return err
	}
	if err := bucket.Delete(f.ID); err != nil {
		return fmt.Errorf("delete blob %s: %w", name, err)
	}
	return nil
}

func locationPrefix(locationID string) string {
	return "locations/" + locationID + "/"
}
