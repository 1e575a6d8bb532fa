package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/medqa/internal/models"
)

func testStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_Manifest(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if _, err := store.GetManifest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store: want ErrNotFound, got %v", err)
	}

	built := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	m := &models.Manifest{
		SchemaVersion:  models.SchemaVersion,
		EmbeddingModel: "text-embedding-004",
		Dimensions:     768,
		ChunkSize:      500,
		ChunkOverlap:   50,
		Separators:     []string{"\n\n", "\n", ". ", " ", ""},
		CorpusPath:     "/data/mtsamples.csv",
		CorpusSHA256:   "abc123",
		Records:        2,
		Chunks:         5,
		BuiltAt:        built,
	}
	if err := store.SaveManifest(ctx, m); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetManifest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.EmbeddingModel != m.EmbeddingModel || got.Dimensions != 768 || got.Chunks != 5 {
		t.Errorf("got %+v", got)
	}
	if len(got.Separators) != 5 || got.Separators[0] != "\n\n" || got.Separators[4] != "" {
		t.Errorf("separators = %q", got.Separators)
	}
	if !got.BuiltAt.Equal(built) {
		t.Errorf("built_at = %v, want %v", got.BuiltAt, built)
	}

	m.Chunks = 6
	if err := store.SaveManifest(ctx, m); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetManifest(ctx)
	if got.Chunks != 6 {
		t.Errorf("manifest should be replaced, chunks = %d", got.Chunks)
	}
}

func TestSQLiteStorage_Chunks(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	chunks := []models.Chunk{
		{ID: "row0-0", RowID: 0, Index: 0, Offset: 0, Text: "Patient underwent laparoscopic", Source: "s.csv"},
		{ID: "row0-1", RowID: 0, Index: 1, Offset: 31, Text: "cholecystectomy under general", Source: "s.csv"},
		{ID: "row1-0", RowID: 1, Index: 0, Offset: 0, Text: "Patient received local anesthesia for"},
	}
	if err := store.BatchCreateChunks(ctx, chunks[:2]); err != nil {
		t.Fatal(err)
	}
	if err := store.BatchCreateChunks(ctx, chunks[2:]); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListChunks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("ListChunks returned %d chunks", len(all))
	}
	for i := range chunks {
		if all[i] != chunks[i] {
			t.Errorf("chunk %d = %+v, want %+v", i, all[i], chunks[i])
		}
	}

	row0, err := store.GetChunksByRowID(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(row0) != 2 || row0[0].Index != 0 || row0[1].Index != 1 {
		t.Errorf("GetChunksByRowID = %+v", row0)
	}
	if none, err := store.GetChunksByRowID(ctx, 7); err != nil || len(none) != 0 {
		t.Errorf("GetChunksByRowID(missing) = %+v, %v", none, err)
	}

	if n, _ := store.CountChunks(ctx); n != 3 {
		t.Errorf("CountChunks = %d", n)
	}
	if n, _ := store.CountRecords(ctx); n != 2 {
		t.Errorf("CountRecords = %d", n)
	}
}

func TestSQLiteStorage_duplicateChunkRollsBack(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	dup := []models.Chunk{
		{ID: "row0-0", Text: "a"},
		{ID: "row0-0", Text: "b"},
	}
	if err := store.BatchCreateChunks(ctx, dup); err == nil {
		t.Fatal("duplicate IDs should fail")
	}
	if n, _ := store.CountChunks(ctx); n != 0 {
		t.Errorf("failed batch should insert nothing, got %d", n)
	}
}
