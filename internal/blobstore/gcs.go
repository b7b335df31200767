package blobstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSStore adapts cloud.google.com/go/storage to the Store contract
// (spec §6 Domain Stack: Blob Store → Google Cloud Storage), grounded on
// the original Python nodes' universal use of google.cloud.storage.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a Store backed by a live GCS client for bucket.
func NewGCSStore(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Write implements Store.
func (s *GCSStore) Write(ctx context.Context, path string, data []byte, contentType string) error {
	obj := s.client.Bucket(s.bucket).Object(path)
	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("blobstore: write %s failed: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("blobstore: close writer for %s failed: %w", path, err)
	}
	return nil
}

// Read implements Store.
func (s *GCSStore) Read(ctx context.Context, path string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("blobstore: open reader for %s failed: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("blobstore: read %s failed: %w", path, err)
	}
	return data, nil
}

// Close releases the underlying GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
