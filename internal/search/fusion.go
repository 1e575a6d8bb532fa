package search

import (
	"context"
	"sort"

	"github.com/hyperjump/medqa/internal/models"
)

// DefaultKeywordWeight is the share of the fused score given to keyword relevance.
const DefaultKeywordWeight = 0.3

// candidateFactor widens each side of a hybrid query so fusion can promote chunks that
// rank low on one side.
const candidateFactor = 4

// KeywordSearcher is a term-based index over chunk text. *index.Index implements it.
type KeywordSearcher interface {
	KeywordSearch(ctx context.Context, query string, k int) (models.RetrievalResult, error)
}

type fused struct {
	chunk    models.Chunk
	semantic float64
	keyword  float64
	score    float64
}

// Fuse merges semantic and keyword hits for one query. Keyword scores are scaled to
// [0,1] by the best keyword hit; a chunk scores (1-w)*semantic + w*keyword, with a
// missing side counting as zero. The result is ordered by non-increasing fused score,
// ties keeping semantic order and then keyword order, and holds at most k chunks.
func Fuse(semantic, keyword models.RetrievalResult, w float64, k int) models.RetrievalResult {
	if k <= 0 {
		return models.RetrievalResult{}
	}
	var maxKeyword float64
	for _, sc := range keyword {
		if sc.Score > maxKeyword {
			maxKeyword = sc.Score
		}
	}

	order := make([]*fused, 0, len(semantic)+len(keyword))
	byID := make(map[string]*fused, len(semantic)+len(keyword))
	for _, sc := range semantic {
		if _, ok := byID[sc.Chunk.ID]; ok {
			continue
		}
		f := &fused{chunk: sc.Chunk, semantic: sc.Score}
		byID[sc.Chunk.ID] = f
		order = append(order, f)
	}
	for _, sc := range keyword {
		f, ok := byID[sc.Chunk.ID]
		if !ok {
			f = &fused{chunk: sc.Chunk}
			byID[sc.Chunk.ID] = f
			order = append(order, f)
		}
		if maxKeyword > 0 {
			f.keyword = sc.Score / maxKeyword
		}
	}
	for _, f := range order {
		f.score = (1-w)*f.semantic + w*f.keyword
	}
	sort.SliceStable(order, func(i, j int) bool { return order[i].score > order[j].score })

	if len(order) > k {
		order = order[:k]
	}
	out := make(models.RetrievalResult, len(order))
	for i, f := range order {
		out[i] = models.ScoredChunk{Chunk: f.chunk, Score: f.score}
	}
	return out
}
