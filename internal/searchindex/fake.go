package searchindex

import (
	"context"
	"sync"
)

// FakeIndex is an in-memory Index for tests.
type FakeIndex struct {
	mu       sync.Mutex
	docs     map[string]Document
	mapped   bool
}

// NewFakeIndex creates an empty FakeIndex.
func NewFakeIndex() *FakeIndex {
	return &FakeIndex{docs: make(map[string]Document)}
}

// EnsureMapping implements Index.
func (f *FakeIndex) EnsureMapping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mapped = true
	return nil
}

// Upsert implements Index.
func (f *FakeIndex) Upsert(ctx context.Context, doc Document) (UpsertResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, existed := f.docs[doc.URL]
	f.docs[doc.URL] = doc
	if existed {
		return ResultUpdated, nil
	}
	return ResultCreated, nil
}

// Get returns the document stored for url, for assertions.
func (f *FakeIndex) Get(url string) (Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[url]
	return doc, ok
}

// Count returns the number of indexed documents.
func (f *FakeIndex) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}
