package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/medqa/internal/corpus"
	"github.com/hyperjump/medqa/internal/indexer"
	"github.com/hyperjump/medqa/internal/keyword"
	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/storage"
	"github.com/hyperjump/medqa/internal/vector"
	"go.uber.org/zap"
)

// Build loads the corpus, embeds every chunk and persists the index at opts.Path,
// replacing any existing index. Nothing is written to opts.Path unless every chunk was
// embedded and persisted; the index is assembled in a sibling directory and renamed into place.
func Build(ctx context.Context, opts Options) (*Index, error) {
	if opts.Embedder == nil || opts.Chunker == nil || opts.Records == nil {
		return nil, errors.New("index build requires an embedder, a chunker and a record source")
	}
	x := newIndex(opts.Path, opts.Embedder, opts.Logger)
	x.setState(StateBuilding)
	start := time.Now()

	m, vectors, chunks, err := x.build(ctx, opts)
	opts.Metrics.IndexBuilt(err)
	if err != nil {
		x.setState(StateFailed)
		x.logger.Error("index build failed", zap.String("path", opts.Path), zap.Error(err))
		return nil, err
	}

	store, err := openStore(opts.Path)
	if err != nil {
		x.setState(StateFailed)
		return nil, fmt.Errorf("open built index: %w", err)
	}

	x.mu.Lock()
	x.manifest, x.vectors, x.chunks, x.store, x.state = m, vectors, chunks, store, StateReady
	x.mu.Unlock()
	x.openKeywords()
	opts.Metrics.IndexLoaded(m.Records, m.Chunks)
	x.logger.Info("index built",
		zap.String("path", opts.Path),
		zap.Int("records", m.Records),
		zap.Int("chunks", m.Chunks),
		zap.String("model", m.EmbeddingModel),
		zap.Duration("took", time.Since(start)))
	return x, nil
}

func (x *Index) build(ctx context.Context, opts Options) (*models.Manifest, vector.VectorIndex, map[string]models.Chunk, error) {
	records, err := opts.Records()
	if err != nil {
		return nil, nil, nil, err
	}

	embedded, err := indexer.NewIndexer(opts.Embedder, opts.Chunker,
		indexer.WithConcurrency(opts.Concurrency),
		indexer.WithBatchSize(opts.BatchSize),
		indexer.WithProgress(opts.Progress),
		indexer.WithLogger(x.logger),
	).Embed(ctx, records)
	if err != nil {
		return nil, nil, nil, err
	}

	dims := opts.Embedder.Dimensions()
	vectors, err := vector.NewMemoryIndex(dims)
	if err != nil {
		return nil, nil, nil, err
	}
	ids := make([]string, len(embedded.Chunks))
	byID := make(map[string]models.Chunk, len(embedded.Chunks))
	for i, ch := range embedded.Chunks {
		ids[i] = ch.ID
		byID[ch.ID] = ch
	}
	if err := vectors.Add(ctx, ids, embedded.Vectors); err != nil {
		return nil, nil, nil, fmt.Errorf("add vectors: %w", err)
	}

	m := &models.Manifest{
		SchemaVersion:  models.SchemaVersion,
		EmbeddingModel: opts.Embedder.ModelID(),
		Dimensions:     dims,
		ChunkSize:      opts.Chunker.Size(),
		ChunkOverlap:   opts.Chunker.Overlap(),
		Separators:     opts.Chunker.Separators(),
		CorpusPath:     opts.CorpusPath,
		Records:        len(records),
		Chunks:         len(embedded.Chunks),
		BuiltAt:        time.Now().UTC(),
	}
	if opts.CorpusPath != "" {
		if sum, err := corpus.Checksum(opts.CorpusPath); err == nil {
			m.CorpusSHA256 = sum
		} else {
			x.logger.Warn("could not checksum corpus", zap.String("path", opts.CorpusPath), zap.Error(err))
		}
	}

	if err := persist(ctx, opts.Path, m, embedded.Chunks, vectors); err != nil {
		return nil, nil, nil, err
	}
	return m, vectors, byID, nil
}

// persist writes the index into a temporary sibling of path and renames it into place.
func persist(ctx context.Context, path string, m *models.Manifest, chunks []models.Chunk, vectors vector.VectorIndex) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index parent: %w", err)
	}
	tmp := path + ".building-" + uuid.NewString()
	if err := os.Mkdir(tmp, 0755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()

	store, err := storage.NewSQLiteStorage(manifestPath(tmp))
	if err != nil {
		return err
	}
	if err := writeStore(ctx, store, m, chunks); err != nil {
		_ = store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close index db: %w", err)
	}
	if err := vectors.Save(vectorsPath(tmp)); err != nil {
		return err
	}
	kw, err := keyword.Create(keywordPath(tmp))
	if err != nil {
		return err
	}
	if err := kw.Add(ctx, chunks); err != nil {
		_ = kw.Close()
		return err
	}
	if err := kw.Close(); err != nil {
		return fmt.Errorf("close keyword index: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return replaceDir(tmp, path)
}

// replaceDir renames src to dst. An existing dst is moved aside first and removed once
// src is in place.
func replaceDir(src, dst string) error {
	if _, err := os.Stat(dst); errors.Is(err, os.ErrNotExist) {
		return os.Rename(src, dst)
	}
	old := dst + ".old-" + uuid.NewString()
	if err := os.Rename(dst, old); err != nil {
		return fmt.Errorf("move old index aside: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		_ = os.Rename(old, dst)
		return fmt.Errorf("move index into place: %w", err)
	}
	return os.RemoveAll(old)
}

func writeStore(ctx context.Context, store storage.Storage, m *models.Manifest, chunks []models.Chunk) error {
	if err := store.BatchCreateChunks(ctx, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	if err := store.SaveManifest(ctx, m); err != nil {
		return fmt.Errorf("store manifest: %w", err)
	}
	return nil
}
