package index

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hyperjump/medqa/internal/models"
	"go.uber.org/zap"
)

// ErrRebuildInProgress is returned by Rebuild while another rebuild is running.
var ErrRebuildInProgress = errors.New("index rebuild already in progress")

// Live serves queries from the current index and lets a rebuilt one replace it.
// Queries in flight during a swap finish against the index they started on.
type Live struct {
	cur     atomic.Pointer[Index]
	opts    Options
	logger  *zap.Logger
	rebuild sync.Mutex
}

// NewLive wraps x. opts are the options used to rebuild it.
func NewLive(x *Index, opts Options) *Live {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Live{opts: opts, logger: logger}
	l.cur.Store(x)
	return l
}

// Current returns the index serving queries.
func (l *Live) Current() *Index { return l.cur.Load() }

func (l *Live) Search(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	return l.Current().Search(ctx, query, k)
}

func (l *Live) KeywordSearch(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	return l.Current().KeywordSearch(ctx, query, k)
}

func (l *Live) HasKeywords() bool { return l.Current().HasKeywords() }

func (l *Live) Stats() Stats { return l.Current().Stats() }

func (l *Live) Row(ctx context.Context, rowID int) ([]models.Chunk, error) {
	return l.Current().Row(ctx, rowID)
}

// Rebuild builds a fresh index from the corpus and swaps it in. On failure the current
// index keeps serving and nothing on disk changes.
func (l *Live) Rebuild(ctx context.Context) error {
	if !l.rebuild.TryLock() {
		return ErrRebuildInProgress
	}
	defer l.rebuild.Unlock()

	next, err := Build(ctx, l.opts)
	if err != nil {
		l.logger.Error("index rebuild failed, keeping current index", zap.Error(err))
		return err
	}
	prev := l.cur.Swap(next)
	if prev != nil {
		if err := prev.Close(); err != nil {
			l.logger.Warn("close replaced index", zap.Error(err))
		}
	}
	l.logger.Info("index swapped", zap.Int("records", next.Stats().Records))
	return nil
}

// Close releases the current index.
func (l *Live) Close() error {
	if x := l.cur.Load(); x != nil {
		return x.Close()
	}
	return nil
}
