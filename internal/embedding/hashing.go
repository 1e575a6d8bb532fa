package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/medqa/pkg/utils"
)

// HashingModelID identifies HashingEmbedder vectors in an index manifest.
const HashingModelID = "hashing-v1"

// HashingEmbedder is a deterministic, offline bag-of-words embedder. Each content term is
// hashed into one of Dimensions() signed buckets, weighted by term frequency.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder creates a hashing embedder with the given dimension.
func NewHashingEmbedder(dimensions int) (*HashingEmbedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	return &HashingEmbedder{dimensions: dimensions}, nil
}

// Embed returns the normalised hashed term vector of text.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dimensions)
	for _, term := range Terms(text) {
		h := HashString(term)
		bucket := int(h % uint32(e.dimensions))
		if h&(1<<31) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	utils.NormalizeL2(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int { return e.dimensions }

// ModelID returns HashingModelID.
func (e *HashingEmbedder) ModelID() string { return HashingModelID }

// Close is a no-op.
func (e *HashingEmbedder) Close() error { return nil }
