// Package keyword provides term-based search over chunk text, backed by Bleve.
package keyword

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/hyperjump/medqa/internal/models"
)

const (
	contentField = "content"
	batchSize    = 500
)

// Hit is a single keyword match; ID is the chunk ID.
type Hit struct {
	ID    string
	Score float64
}

// Index is a Bleve index of chunk text keyed by chunk ID.
type Index struct {
	index bleve.Index
}

type document struct {
	Content string `json:"content"`
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentStaticMapping()
	text := bleve.NewTextFieldMapping()
	// Standard analyzer lowercases and drops English stop words without stemming, so
	// drug and procedure names match as written.
	text.Analyzer = standard.Name
	text.Store = false
	doc.AddFieldMappingsAt(contentField, text)
	im.DefaultMapping = doc
	return im
}

// Create makes a new, empty index at path. path must not exist.
func Create(path string) (*Index, error) {
	idx, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &Index{index: idx}, nil
}

// Open opens an existing index at path read-only.
func Open(path string) (*Index, error) {
	idx, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	return &Index{index: idx}, nil
}

// Add indexes chunks in batches.
func (k *Index) Add(ctx context.Context, chunks []models.Chunk) error {
	batch := k.index.NewBatch()
	for i, ch := range chunks {
		if err := batch.Index(ch.ID, document{Content: ch.Text}); err != nil {
			return fmt.Errorf("index chunk %s: %w", ch.ID, err)
		}
		if batch.Size() >= batchSize || i == len(chunks)-1 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := k.index.Batch(batch); err != nil {
				return fmt.Errorf("write keyword batch: %w", err)
			}
			batch.Reset()
		}
	}
	return nil
}

// Search runs a match query over chunk text and returns at most limit hits by
// descending relevance score. A query with no indexable terms returns no hits.
func (k *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := bleve.NewMatchQuery(query)
	q.SetField(contentField)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := k.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	hits := make([]Hit, len(res.Hits))
	for i, h := range res.Hits {
		hits[i] = Hit{ID: h.ID, Score: h.Score}
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (k *Index) Count() (uint64, error) {
	return k.index.DocCount()
}

// Close releases the index.
func (k *Index) Close() error {
	return k.index.Close()
}
