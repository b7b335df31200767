// Package searchindex defines the full-text index contract (spec §4.3:
// upsert-by-URL, idempotent mapping creation), plus an Elasticsearch
// adapter and an in-memory fake for tests.
package searchindex

import "context"

// Document is one page indexed by URL.
type Document struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

// UpsertResult reports whether an upsert created a new document or
// updated an existing one, mirroring the original indexer's check of
// `result in ["created", "updated"]`.
type UpsertResult string

const (
	ResultCreated UpsertResult = "created"
	ResultUpdated UpsertResult = "updated"
)

// Index is the narrow contract business logic depends on instead of a
// concrete search client.
type Index interface {
	// EnsureMapping creates the index with its mapping if it does not
	// already exist (spec §4.3: idempotent).
	EnsureMapping(ctx context.Context) error

	// Upsert indexes doc by doc.URL, creating or replacing it.
	Upsert(ctx context.Context, doc Document) (UpsertResult, error)
}
