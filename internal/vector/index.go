// Package vector provides vector index and similarity search.
package vector

import (
	"context"
	"errors"
)

// ErrDimension is returned when a vector's length differs from the index dimension.
var ErrDimension = errors.New("vector dimension mismatch")

// VectorIndex defines vector storage and similarity search. Search results with equal
// scores keep insertion order.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]VectorResult, error)
	// IDs returns the stored IDs in insertion order.
	IDs() []string
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
}

// VectorResult is a single vector search hit (ID is the chunk ID).
type VectorResult struct {
	ID    string
	Score float64 // inner product; cosine similarity for normalized vectors
}
