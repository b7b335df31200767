package searchindex

import (
	"context"
	"fmt"

	"github.com/olivere/elastic/v7"
)

// mapping gives url a keyword field (exact match/dedup by id) and
// content a standard-analyzer text field, matching the original indexer's
// index creation body.
const mapping = `{
  "mappings": {
    "properties": {
      "url":     {"type": "keyword"},
      "content": {"type": "text", "analyzer": "standard"}
    }
  }
}`

// ElasticIndex adapts github.com/olivere/elastic/v7 to the Index contract
// (spec §6 Domain Stack: Full-Text Index → Elasticsearch), grounded on the
// original Python indexer's elasticsearch-py client.
type ElasticIndex struct {
	client *elastic.Client
	name   string
}

// NewElasticIndex creates an Index backed by a live Elasticsearch client.
func NewElasticIndex(url, name, username, password string) (*ElasticIndex, error) {
	opts := []elastic.ClientOptionFunc{
		elastic.SetURL(url),
		elastic.SetSniff(false),
	}
	if username != "" {
		opts = append(opts, elastic.SetBasicAuth(username, password))
	}

	client, err := elastic.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("searchindex: failed to create elasticsearch client: %w", err)
	}

	return &ElasticIndex{client: client, name: name}, nil
}

// EnsureMapping implements Index.
func (e *ElasticIndex) EnsureMapping(ctx context.Context) error {
	exists, err := e.client.IndexExists(e.name).Do(ctx)
	if err != nil {
		return fmt.Errorf("searchindex: failed to check index existence: %w", err)
	}
	if exists {
		return nil
	}

	_, err = e.client.CreateIndex(e.name).BodyString(mapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("searchindex: failed to create index: %w", err)
	}
	return nil
}

// Upsert implements Index.
func (e *ElasticIndex) Upsert(ctx context.Context, doc Document) (UpsertResult, error) {
	resp, err := e.client.Index().
		Index(e.name).
		Id(doc.URL).
		BodyJson(doc).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("searchindex: upsert %s failed: %w", doc.URL, err)
	}

	switch resp.Result {
	case "created":
		return ResultCreated, nil
	case "updated":
		return ResultUpdated, nil
	default:
		return "", fmt.Errorf("searchindex: unexpected upsert result %q for %s", resp.Result, doc.URL)
	}
}
