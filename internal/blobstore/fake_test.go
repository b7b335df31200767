package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeStoreWriteRead(t *testing.T) {
	s := NewFakeStore()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "raw_html/abc.html", []byte("<html></html>"), ContentTypeHTML))

	data, err := s.Read(ctx, "raw_html/abc.html")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(data))
	assert.Equal(t, ContentTypeHTML, s.ContentType("raw_html/abc.html"))
}

func TestFakeStoreReadMissing(t *testing.T) {
	s := NewFakeStore()
	_, err := s.Read(context.Background(), "missing.json")
	assert.Error(t, err, "expected error for missing object")
}
