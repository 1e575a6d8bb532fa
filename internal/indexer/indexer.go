package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hyperjump/medqa/internal/embedding"
	"github.com/hyperjump/medqa/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoChunks is returned when the records produce no non-empty chunks.
var ErrNoChunks = errors.New("corpus produced no chunks")

// Embedded is the output of a build: chunks and their vectors, index-aligned.
type Embedded struct {
	Chunks  []models.Chunk
	Vectors [][]float32
}

// ProgressFunc is called after each batch with the number of chunks embedded so far.
// It may be called from multiple goroutines.
type ProgressFunc func(done, total int)

// Indexer chunks records and embeds the chunks with a bounded worker fan-out.
type Indexer struct {
	embedder    embedding.Embedder
	chunker     *Chunker
	concurrency int
	batchSize   int
	progress    ProgressFunc
	logger      *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithConcurrency sets the number of concurrent embedding batches.
func WithConcurrency(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.concurrency = n
		}
	}
}

// WithBatchSize sets the number of chunks per embedding call.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) IndexerOption {
	return func(idx *Indexer) { idx.progress = fn }
}

// NewIndexer creates an indexer with the given dependencies.
func NewIndexer(embedder embedding.Embedder, chunker *Chunker, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		embedder:    embedder,
		chunker:     chunker,
		concurrency: 4,
		batchSize:   32,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Embed chunks records and embeds every chunk. The first embedding error cancels the
// remaining batches and is returned; no partial result is returned.
func (idx *Indexer) Embed(ctx context.Context, records []models.Record) (*Embedded, error) {
	chunks := idx.chunker.ChunkAll(records)
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	idx.logger.Debug("indexer chunked corpus",
		zap.Int("records", len(records)),
		zap.Int("chunks", len(chunks)),
		zap.Int("batch_size", idx.batchSize),
		zap.Int("concurrency", idx.concurrency))

	vectors := make([][]float32, len(chunks))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.concurrency)
	for start := 0; start < len(chunks); start += idx.batchSize {
		start, end := start, min(start+idx.batchSize, len(chunks))
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = chunks[start+i].Text
			}
			vecs, err := idx.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed chunks %s..%s: %w", chunks[start].ID, chunks[end-1].ID, err)
			}
			if len(vecs) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(texts))
			}
			copy(vectors[start:end], vecs)
			if idx.progress != nil {
				idx.progress(int(done.Add(int64(len(texts)))), len(chunks))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Embedded{Chunks: chunks, Vectors: vectors}, nil
}
