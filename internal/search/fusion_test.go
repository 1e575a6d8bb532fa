package search

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/medqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scored(id string, score float64) models.ScoredChunk {
	return models.ScoredChunk{Chunk: models.Chunk{ID: id}, Score: score}
}

func ids(r models.RetrievalResult) []string {
	out := make([]string, len(r))
	for i, sc := range r {
		out[i] = sc.Chunk.ID
	}
	return out
}

func TestFuse(t *testing.T) {
	semantic := models.RetrievalResult{scored("a", 0.9), scored("b", 0.5), scored("c", 0.1)}
	keyword := models.RetrievalResult{scored("c", 10), scored("a", 5)}

	res := Fuse(semantic, keyword, 0.5, 3)
	assert.Equal(t, []string{"a", "c", "b"}, ids(res))
	assert.InDelta(t, 0.7, res[0].Score, 1e-9)
	assert.InDelta(t, 0.55, res[1].Score, 1e-9)
	assert.InDelta(t, 0.25, res[2].Score, 1e-9)

	assert.Equal(t, []string{"a", "c"}, ids(Fuse(semantic, keyword, 0.5, 2)))
}

func TestFuse_weights(t *testing.T) {
	semantic := models.RetrievalResult{scored("a", 0.9), scored("b", 0.5)}
	keyword := models.RetrievalResult{scored("d", 3), scored("b", 1)}

	assert.Equal(t, []string{"a", "b", "d"}, ids(Fuse(semantic, keyword, 0, 5)), "zero weight keeps semantic order")
	assert.Equal(t, []string{"d", "b", "a"}, ids(Fuse(semantic, keyword, 1, 5)), "full weight is keyword order")
}

func TestFuse_ties(t *testing.T) {
	semantic := models.RetrievalResult{scored("a", 0.5), scored("b", 0.5)}
	keyword := models.RetrievalResult{scored("x", 2), scored("y", 2)}
	assert.Equal(t, []string{"x", "y", "a", "b"}, ids(Fuse(semantic, keyword, 0.5, 4)))
}

func TestFuse_edges(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, 0.3, 3))
	assert.Empty(t, Fuse(models.RetrievalResult{scored("a", 1)}, nil, 0.3, 0))

	dup := models.RetrievalResult{scored("a", 0.8), scored("a", 0.2)}
	res := Fuse(dup, nil, 0.3, 3)
	require.Len(t, res, 1)
	assert.InDelta(t, 0.56, res[0].Score, 1e-9)

	zero := Fuse(nil, models.RetrievalResult{scored("k", 0)}, 0.3, 3)
	require.Len(t, zero, 1)
	assert.Zero(t, zero[0].Score)
}

type fakeKeywords struct {
	results models.RetrievalResult
	err     error
	gotK    int
}

func (f *fakeKeywords) KeywordSearch(_ context.Context, _ string, k int) (models.RetrievalResult, error) {
	f.gotK = k
	return f.results, f.err
}

func TestRetriever_hybrid(t *testing.T) {
	s := &fakeSearcher{results: hits(5)}
	kw := &fakeKeywords{results: models.RetrievalResult{
		{Chunk: models.Chunk{ID: models.ChunkID(4, 0), RowID: 4}, Score: 7},
	}}
	r := NewRetriever(s, 2, WithKeywords(kw, 1))
	assert.True(t, r.Hybrid())

	res, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 4, res[0].Chunk.RowID, "keyword-only match ranks first at full keyword weight")
	assert.Equal(t, 2*candidateFactor, s.gotK)
	assert.Equal(t, 2*candidateFactor, kw.gotK)
	for i := 1; i < len(res); i++ {
		assert.GreaterOrEqual(t, res[i-1].Score, res[i].Score)
	}
}

func TestRetriever_hybridErrors(t *testing.T) {
	boom := errors.New("keyword index closed")
	_, err := NewRetriever(&fakeSearcher{results: hits(3)}, 3, WithKeywords(&fakeKeywords{err: boom}, 0.3)).
		Retrieve(context.Background(), "q")
	assert.ErrorIs(t, err, boom)

	cause := &models.EmbeddingServiceError{Attempts: 2}
	_, err = NewRetriever(&fakeSearcher{err: cause}, 3, WithKeywords(&fakeKeywords{}, 0.3)).
		Retrieve(context.Background(), "q")
	var target *models.EmbeddingServiceError
	assert.ErrorAs(t, err, &target)
}

func TestWithKeywords_weightDefault(t *testing.T) {
	for _, w := range []float64{0, -1, 1.5} {
		r := NewRetriever(&fakeSearcher{}, 3, WithKeywords(&fakeKeywords{}, w))
		assert.Equal(t, DefaultKeywordWeight, r.keywordWeight, "w=%v", w)
	}
	assert.False(t, NewRetriever(&fakeSearcher{}, 3).Hybrid())
}
