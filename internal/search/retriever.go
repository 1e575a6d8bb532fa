// Package search turns a query into the top-K most similar chunks, optionally fusing
// keyword matches into the ranking.
package search

import (
	"context"
	"fmt"

	"github.com/hyperjump/medqa/internal/models"
)

// DefaultK is the number of chunks retrieved per query.
const DefaultK = 3

// Searcher is a similarity index over chunk embeddings. *index.Index implements it.
type Searcher interface {
	Search(ctx context.Context, query string, k int) (models.RetrievalResult, error)
}

// Retriever fetches context chunks for a query from a Searcher.
type Retriever struct {
	searcher      Searcher
	k             int
	keywords      KeywordSearcher
	keywordWeight float64
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithKeywords turns on hybrid retrieval: semantic and keyword hits are merged with Fuse,
// keyword relevance taking weight w of the score. w outside (0, 1] means
// DefaultKeywordWeight.
func WithKeywords(ks KeywordSearcher, w float64) RetrieverOption {
	return func(r *Retriever) {
		if w <= 0 || w > 1 {
			w = DefaultKeywordWeight
		}
		r.keywords, r.keywordWeight = ks, w
	}
}

// NewRetriever creates a retriever returning k chunks per query. k <= 0 means DefaultK.
func NewRetriever(searcher Searcher, k int, opts ...RetrieverOption) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	r := &Retriever{searcher: searcher, k: k}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Hybrid reports whether keyword hits are fused into results.
func (r *Retriever) Hybrid() bool { return r.keywords != nil }

// K returns the configured number of chunks per query.
func (r *Retriever) K() int { return r.k }

// Retrieve returns at most K chunks ordered by non-increasing similarity, or by fused
// score when hybrid.
func (r *Retriever) Retrieve(ctx context.Context, query string) (models.RetrievalResult, error) {
	return r.RetrieveK(ctx, query, r.k)
}

// RetrieveK is Retrieve with an explicit k.
func (r *Retriever) RetrieveK(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	q, err := ProcessQuery(query)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return models.RetrievalResult{}, nil
	}
	if r.keywords != nil {
		return r.hybrid(ctx, q, k)
	}
	res, err := r.searcher.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

func (r *Retriever) hybrid(ctx context.Context, q string, k int) (models.RetrievalResult, error) {
	n := k * candidateFactor
	semantic, err := r.searcher.Search(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	keyword, err := r.keywords.KeywordSearch(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("retrieve keywords: %w", err)
	}
	return Fuse(semantic, keyword, r.keywordWeight, k), nil
}
