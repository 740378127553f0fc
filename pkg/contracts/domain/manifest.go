package domain

import (
	"time"
)

// DatasetManifest records the provenance of the raw dataset file so a
// refresh can tell whether upstream actually changed. The fingerprint
// is the hex BLAKE2b-256 digest of the file contents.
type DatasetManifest struct {
	Source       string    `json:"source" validate:"required,url"`
	FilePath     string    `json:"file_path"`
	Fingerprint  string    `json:"fingerprint" validate:"required,len=64"`
	SizeBytes    int64     `json:"size_bytes" validate:"min=0"`
	FetchedAt    time.Time `json:"fetched_at"`
	LastModified string    `json:"last_modified,omitempty"`
}
