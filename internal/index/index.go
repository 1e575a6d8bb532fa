// Package index manages the persisted embedding index: building it from the corpus,
// loading it back, and answering similarity queries.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/medqa/internal/corpus"
	"github.com/hyperjump/medqa/internal/embedding"
	"github.com/hyperjump/medqa/internal/indexer"
	"github.com/hyperjump/medqa/internal/keyword"
	"github.com/hyperjump/medqa/internal/metrics"
	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/storage"
	"github.com/hyperjump/medqa/internal/vector"
	"go.uber.org/zap"
)

const (
	manifestFile = "index.db"
	vectorsFile  = "vectors.bin"
	keywordDir   = "keyword.bleve"
)

// ErrNotReady is returned by Search on an index that has not finished building or loading.
var ErrNotReady = errors.New("index is not ready")

// State is the index lifecycle: Uninitialized, then Building or Loading, then Ready or Failed.
type State int

const (
	StateUninitialized State = iota
	StateBuilding
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBuilding:
		return "building"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecordSource loads corpus records. It is only called when a build is needed.
type RecordSource func() ([]models.Record, error)

// Options configures OpenOrBuild and Build.
type Options struct {
	Path     string
	Embedder embedding.Embedder
	Chunker  *indexer.Chunker
	Records  RecordSource
	// CorpusPath is recorded in the manifest and checksummed to detect corpus changes.
	CorpusPath  string
	Concurrency int
	BatchSize   int
	Progress    indexer.ProgressFunc
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Index is an immutable set of embedded chunks once Ready; Search is safe for concurrent use.
type Index struct {
	path     string
	embedder embedding.Embedder
	logger   *zap.Logger

	mu       sync.RWMutex
	state    State
	manifest *models.Manifest
	vectors  vector.VectorIndex
	chunks   map[string]models.Chunk
	store    storage.Storage
	keywords *keyword.Index // nil when the index predates keyword search
}

func newIndex(path string, embedder embedding.Embedder, logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{path: path, embedder: embedder, logger: logger, state: StateUninitialized}
}

func (x *Index) setState(s State) {
	x.mu.Lock()
	x.state = s
	x.mu.Unlock()
}

// State returns the current lifecycle state.
func (x *Index) State() State {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.state
}

// OpenOrBuild loads the index at opts.Path if it exists and is non-empty, otherwise loads
// the corpus, chunks it, embeds every chunk and persists the result. The decision is made
// once, here.
func OpenOrBuild(ctx context.Context, opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	exists, err := dirNonEmpty(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("check index path: %w", err)
	}
	if exists {
		logger.Info("loading existing index", zap.String("path", opts.Path))
		x, err := Load(ctx, opts.Path, opts.Embedder, opts.Logger)
		if err != nil {
			return nil, err
		}
		x.checkCorpus(opts.CorpusPath)
		opts.Metrics.IndexLoaded(x.manifest.Records, x.manifest.Chunks)
		return x, nil
	}
	logger.Info("no index found, building", zap.String("path", opts.Path), zap.String("corpus", opts.CorpusPath))
	return Build(ctx, opts)
}

// Stats describes a ready index.
type Stats struct {
	State          string    `json:"state"`
	Path           string    `json:"path"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	Records        int       `json:"records"`
	Chunks         int       `json:"chunks"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	CorpusPath     string    `json:"corpus_path,omitempty"`
	CorpusSHA256   string    `json:"corpus_sha256,omitempty"`
	BuiltAt        time.Time `json:"built_at"`
	DiskBytes      int64     `json:"disk_bytes"`
	KeywordIndex   bool      `json:"keyword_index"`
}

// Stats returns index metadata. Fields other than State and Path are zero until Ready.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s := Stats{State: x.state.String(), Path: x.path, KeywordIndex: x.keywords != nil}
	if m := x.manifest; m != nil {
		s.EmbeddingModel = m.EmbeddingModel
		s.Dimensions = m.Dimensions
		s.Records = m.Records
		s.Chunks = m.Chunks
		s.ChunkSize = m.ChunkSize
		s.ChunkOverlap = m.ChunkOverlap
		s.CorpusPath = m.CorpusPath
		s.CorpusSHA256 = m.CorpusSHA256
		s.BuiltAt = m.BuiltAt
	}
	if n, err := storage.DiskUsageBytes(x.path); err == nil {
		s.DiskBytes = n
	}
	return s
}

// Search embeds query with the index's embedder and returns at most k chunks ordered by
// non-increasing similarity.
func (x *Index) Search(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	x.mu.RLock()
	state, vectors, chunks := x.state, x.vectors, x.chunks
	x.mu.RUnlock()
	if state != StateReady {
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, state)
	}

	qv, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(qv) != vectors.Dimensions() {
		return nil, &models.EmbeddingMismatchError{
			Field:      "dimensions",
			Index:      strconv.Itoa(vectors.Dimensions()),
			Configured: strconv.Itoa(len(qv)),
		}
	}

	hits, err := vectors.Search(ctx, qv, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	result := make(models.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		ch, ok := chunks[h.ID]
		if !ok {
			return nil, fmt.Errorf("vector %s has no chunk", h.ID)
		}
		result = append(result, models.ScoredChunk{Chunk: ch, Score: h.Score})
	}
	return result, nil
}

// HasKeywords reports whether KeywordSearch has an index to search.
func (x *Index) HasKeywords() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.keywords != nil
}

// KeywordSearch returns at most k chunks matching the query's terms, ordered by
// non-increasing keyword relevance. It returns an empty result when the index has no
// keyword index.
func (x *Index) KeywordSearch(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	// Held for the whole search so Close waits for it.
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.state != StateReady {
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, x.state)
	}
	if x.keywords == nil {
		return models.RetrievalResult{}, nil
	}
	hits, err := x.keywords.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}
	result := make(models.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		ch, ok := x.chunks[h.ID]
		if !ok {
			return nil, fmt.Errorf("keyword hit %s has no chunk", h.ID)
		}
		result = append(result, models.ScoredChunk{Chunk: ch, Score: h.Score})
	}
	return result, nil
}

// Row returns every chunk of a corpus row in chunk order, read from the index database.
func (x *Index) Row(ctx context.Context, rowID int) ([]models.Chunk, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.state != StateReady || x.store == nil {
		return nil, fmt.Errorf("%w (state %s)", ErrNotReady, x.state)
	}
	chunks, err := x.store.GetChunksByRowID(ctx, rowID)
	if err != nil {
		return nil, fmt.Errorf("read row %d: %w", rowID, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("row %d: %w", rowID, storage.ErrNotFound)
	}
	return chunks, nil
}

// RowText reassembles a row from its chunks, dropping the overlap between neighbours.
// Whitespace trimmed from chunk edges is restored as a single space.
func RowText(chunks []models.Chunk) string {
	var b strings.Builder
	end := 0
	for i, ch := range chunks {
		switch {
		case i == 0:
			b.WriteString(ch.Text)
		case ch.End() <= end:
			continue
		case ch.Offset >= end:
			b.WriteByte(' ')
			b.WriteString(ch.Text)
		default:
			b.WriteString(ch.Text[end-ch.Offset:])
		}
		end = ch.End()
	}
	return b.String()
}

// Close releases the keyword index and the index database. Vector search keeps working
// after Close.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	var errs []error
	if x.keywords != nil {
		errs = append(errs, x.keywords.Close())
		x.keywords = nil
	}
	if x.store != nil {
		errs = append(errs, x.store.Close())
		x.store = nil
	}
	return errors.Join(errs...)
}

// openKeywords attaches the keyword index under x.path if there is one.
func (x *Index) openKeywords() {
	path := keywordPath(x.path)
	if _, err := os.Stat(path); err != nil {
		x.logger.Debug("no keyword index", zap.String("path", path))
		return
	}
	kw, err := keyword.Open(path)
	if err != nil {
		x.logger.Warn("keyword index unavailable, keyword search disabled", zap.String("path", path), zap.Error(err))
		return
	}
	x.mu.Lock()
	x.keywords = kw
	x.mu.Unlock()
}

func (x *Index) checkCorpus(corpusPath string) {
	x.mu.RLock()
	recorded := x.manifest.CorpusSHA256
	x.mu.RUnlock()
	if corpusPath == "" || recorded == "" {
		return
	}
	sum, err := corpus.Checksum(corpusPath)
	if err != nil {
		x.logger.Warn("could not checksum corpus", zap.String("path", corpusPath), zap.Error(err))
		return
	}
	if sum != recorded {
		x.logger.Warn("corpus changed since the index was built; row citations may point at different rows, rebuild with `medqa index --rebuild`",
			zap.String("corpus", corpusPath),
			zap.String("index_sha256", recorded),
			zap.String("corpus_sha256", sum))
	}
}

func dirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

func manifestPath(dir string) string { return filepath.Join(dir, manifestFile) }

func vectorsPath(dir string) string { return filepath.Join(dir, vectorsFile) }

func keywordPath(dir string) string { return filepath.Join(dir, keywordDir) }
