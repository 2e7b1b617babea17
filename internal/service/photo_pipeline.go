package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"golang.org/x/sync/errgroup"
	"sublease-service/internal/model"
)

const (
	// jpegQuality matches the lossy compression the mobile client used.
	jpegQuality = 80
	// uploadConcurrency bounds how many photo uploads run at once.
	uploadConcurrency = 10
)

// BlobStore is the photo blob storage the pipeline writes to.
type BlobStore interface {
	Upload(ctx context.Context, name string, data io.Reader) error
	DownloadURL(ctx context.Context, name string) (string, error)
	Delete(ctx context.Context, name string) error
}

// PhotoStore adds the read path for per-listing photo metadata.
type PhotoStore interface {
	BlobStore
	ListByLocation(ctx context.Context, locationID string) ([]model.Photo, error)
}

// UploadResult is the outcome for one photo in a batch. Callers get every
// per-photo failure instead of a silently shortened URL list.
type UploadResult struct {
	Index int
	Name  string
	URL   string
	Err   error
}

// PhotoPipeline turns selected images into durable public URLs. Each photo
// is encoded to JPEG, uploaded under the listing's namespace and resolved
// to a download URL, independently of its siblings.
type PhotoPipeline struct {
	Store BlobStore
}

// Upload processes the batch with bounded concurrency and joins before
// returning. Results come back in input order; a photo that fails at any
// stage carries its error and no URL.
func (p *PhotoPipeline) Upload(ctx context.Context, locationID string, photos []image.Image) []UploadResult {
	results := make([]UploadResult, len(photos))

	g := new(errgroup.Group)
	g.SetLimit(uploadConcurrency)
	for i, photo := range photos {
		i, photo := i, photo
		g.Go(func() error {
			results[i] = p.uploadOne(ctx, locationID, i, photo)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *PhotoPipeline) uploadOne(ctx context.Context, locationID string, index int, photo image.Image) UploadResult {
	res := UploadResult{
		Index: index,
		Name:  PhotoName(locationID, index),
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, photo, &jpeg.Options{Quality: jpegQuality}); err != nil {
		res.Err = fmt.Errorf("encode photo %d: %w", index, err)
		return res
	}
	if err := p.Store.Upload(ctx, res.Name, &buf); err != nil {
		res.Err = fmt.Errorf("upload photo %d: %w", index, err)
		return res
	}

	url, err := p.Store.DownloadURL(ctx, res.Name)
	if err != nil {
		res.Err = fmt.Errorf("resolve photo %d url: %w", index, err)
		return res
	}
	res.URL = url
	return res
}

// PhotoName is the storage path for the index-th photo of a listing.
func PhotoName(locationID string, index int) string {
	return fmt.Sprintf("locations/%s/photo%d.jpg", locationID, index)
}

// SuccessfulURLs keeps the URLs of the photos that made it, in input order.
func SuccessfulURLs(results []UploadResult) []string {
	var urls []string
	for _, res := range results {
		if res.Err == nil {
			urls = append(urls, res.URL)
		}
	}
	return urls
}
