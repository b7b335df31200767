// Package blobstore defines the durable object-storage contract used to
// persist job payloads, link batches, raw HTML, and processed text
// (spec §6 "Blob paths"), plus a Google Cloud Storage adapter and an
// in-memory fake for tests.
package blobstore

import "context"

// Content-type constants matching spec §6's blob-path table.
const (
	ContentTypeJSON  = "application/json"
	ContentTypeHTML  = "text/html"
	ContentTypePlain = "text/plain"
)

// Store is the narrow contract business logic depends on instead of a
// concrete storage client.
type Store interface {
	// Write uploads data to path under the configured bucket with the
	// given content type, overwriting any existing object.
	Write(ctx context.Context, path string, data []byte, contentType string) error

	// Read downloads the object at path.
	Read(ctx context.Context, path string) ([]byte, error)
}
