package index

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hyperjump/medqa/internal/embedding"
	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/storage"
	"github.com/hyperjump/medqa/internal/vector"
	"go.uber.org/zap"
)

// Load reconstructs the index at path without calling the embedding service. The
// embedder must match the model and dimension recorded at build time.
func Load(ctx context.Context, path string, embedder embedding.Embedder, logger *zap.Logger) (*Index, error) {
	x := newIndex(path, embedder, logger)
	x.setState(StateLoading)
	start := time.Now()

	store, err := openStore(path)
	if err != nil {
		x.setState(StateFailed)
		return nil, err
	}
	m, vectors, chunks, err := load(ctx, store, path, embedder)
	if err != nil {
		_ = store.Close()
		x.setState(StateFailed)
		return nil, err
	}

	x.mu.Lock()
	x.manifest, x.vectors, x.chunks, x.store, x.state = m, vectors, chunks, store, StateReady
	x.mu.Unlock()
	x.openKeywords()
	x.logger.Info("index loaded",
		zap.String("path", path),
		zap.Int("records", m.Records),
		zap.Int("chunks", m.Chunks),
		zap.String("model", m.EmbeddingModel),
		zap.Duration("took", time.Since(start)))
	return x, nil
}

// openStore opens the index database of the index at path.
func openStore(path string) (storage.Storage, error) {
	for _, p := range []string{manifestPath(path), vectorsPath(path)} {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("index at %s is incomplete: %w", path, err)
		}
	}
	return storage.NewSQLiteStorage(manifestPath(path))
}

func load(ctx context.Context, store storage.Storage, path string, embedder embedding.Embedder) (*models.Manifest, vector.VectorIndex, map[string]models.Chunk, error) {
	m, err := store.GetManifest(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read index manifest: %w", err)
	}
	if m.SchemaVersion != models.SchemaVersion {
		return nil, nil, nil, fmt.Errorf("index schema version %d is not supported (want %d); rebuild the index", m.SchemaVersion, models.SchemaVersion)
	}
	if m.EmbeddingModel != embedder.ModelID() {
		return nil, nil, nil, &models.EmbeddingMismatchError{Field: "model", Index: m.EmbeddingModel, Configured: embedder.ModelID()}
	}
	if m.Dimensions != embedder.Dimensions() {
		return nil, nil, nil, &models.EmbeddingMismatchError{
			Field:      "dimensions",
			Index:      strconv.Itoa(m.Dimensions),
			Configured: strconv.Itoa(embedder.Dimensions()),
		}
	}

	if err := checkCounts(ctx, store, m); err != nil {
		return nil, nil, nil, err
	}

	list, err := store.ListChunks(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read chunks: %w", err)
	}
	vectors, err := vector.NewMemoryIndex(m.Dimensions)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := vectors.Load(vectorsPath(path)); err != nil {
		return nil, nil, nil, fmt.Errorf("read vectors: %w", err)
	}

	if vectors.Size() != len(list) || len(list) != m.Chunks {
		return nil, nil, nil, fmt.Errorf("index is corrupt: manifest has %d chunks, db %d, vectors %d", m.Chunks, len(list), vectors.Size())
	}
	ids := vectors.IDs()
	chunks := make(map[string]models.Chunk, len(list))
	for i, ch := range list {
		if ids[i] != ch.ID {
			return nil, nil, nil, fmt.Errorf("index is corrupt: vector %d is %s, chunk is %s", i, ids[i], ch.ID)
		}
		chunks[ch.ID] = ch
	}
	return m, vectors, chunks, nil
}

// checkCounts compares the database against the manifest before anything large is read.
func checkCounts(ctx context.Context, store storage.Storage, m *models.Manifest) error {
	chunks, err := store.CountChunks(ctx)
	if err != nil {
		return fmt.Errorf("count chunks: %w", err)
	}
	if chunks != int64(m.Chunks) {
		return fmt.Errorf("index is corrupt: manifest has %d chunks, db %d", m.Chunks, chunks)
	}
	// Records that produced no chunk have no rows, so the db may count fewer.
	records, err := store.CountRecords(ctx)
	if err != nil {
		return fmt.Errorf("count records: %w", err)
	}
	if records > int64(m.Records) {
		return fmt.Errorf("index is corrupt: manifest has %d records, db %d", m.Records, records)
	}
	return nil
}
