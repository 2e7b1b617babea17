package model

import "time"

// Photo is per-listing blob metadata read back from storage.
// It has no lifecycle of its own here; blobs are written by the
// photo pipeline and only listed through this type.
type Photo struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Length     int64     `json:"length"`
	UploadedAt time.Time `json:"uploadedAt"`
}
