package keyword

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/medqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chunks = []models.Chunk{
	{ID: "row0-0", RowID: 0, Text: "Patient underwent laparoscopic cholecystectomy under general anesthesia."},
	{ID: "row1-0", RowID: 1, Text: "Patient received local anesthesia for carpal tunnel release."},
	{ID: "row2-0", RowID: 2, Text: "Chest x-ray showed no acute cardiopulmonary process."},
}

func newIndex(t *testing.T) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keyword.bleve")
	k, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, k.Add(context.Background(), chunks))
	return k, path
}

func TestSearch(t *testing.T) {
	k, _ := newIndex(t)
	defer k.Close()

	n, err := k.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	hits, err := k.Search(context.Background(), "cholecystectomy anesthesia", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "row0-0", hits[0].ID, "matching both terms ranks first")
	assert.Equal(t, "row1-0", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = k.Search(context.Background(), "Cholecystectomy", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1, "matching is case-insensitive")

	hits, err = k.Search(context.Background(), "anesthesia", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearch_noMatches(t *testing.T) {
	k, _ := newIndex(t)
	defer k.Close()

	for _, q := range []string{"capital france", "what is the", ""} {
		hits, err := k.Search(context.Background(), q, 5)
		require.NoError(t, err, q)
		assert.Empty(t, hits, q)
	}
	hits, err := k.Search(context.Background(), "anesthesia", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestOpen_readOnly(t *testing.T) {
	k, path := newIndex(t)
	require.NoError(t, k.Close())

	ro, err := Open(path)
	require.NoError(t, err)
	defer ro.Close()
	hits, err := ro.Search(context.Background(), "carpal tunnel", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "row1-0", hits[0].ID)
}

func TestOpen_missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.bleve"))
	assert.Error(t, err)
}
