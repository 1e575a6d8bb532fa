// Package embedding provides text embedding via remote APIs, ONNX, or feature hashing, with caching.
package embedding

import (
	"context"
	"strconv"

	"github.com/hyperjump/medqa/internal/models"
)

// Embedder produces vector embeddings for text. Vectors are L2-normalised so that the
// inner product of two embeddings is their cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// ModelID identifies the model; an index built with one ModelID cannot be queried
	// with another.
	ModelID() string
	Close() error
}

func checkDimensions(want int, vec []float32) error {
	if len(vec) != want {
		return &models.EmbeddingMismatchError{
			Field:      "dimensions",
			Index:      strconv.Itoa(len(vec)),
			Configured: strconv.Itoa(want),
		}
	}
	return nil
}
