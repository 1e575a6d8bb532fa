// Package pipeline runs one query through retrieval and answer synthesis.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hyperjump/medqa/internal/metrics"
	"github.com/hyperjump/medqa/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Retriever returns the context chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (models.RetrievalResult, error)
}

// Synthesizer answers a query from retrieved chunks.
type Synthesizer interface {
	Answer(ctx context.Context, query string, chunks models.RetrievalResult) (*models.Answer, error)
}

// Pipeline sequences retrieval and synthesis. Run is safe for concurrent use.
type Pipeline struct {
	retriever   Retriever
	synthesizer Synthesizer
	timeout     time.Duration
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithQueryTimeout bounds each Run; 0 leaves only the caller's deadline.
func WithQueryTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a pipeline.
func New(retriever Retriever, synthesizer Synthesizer, opts ...Option) *Pipeline {
	p := &Pipeline{retriever: retriever, synthesizer: synthesizer, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run answers query. Failures are returned as typed errors (see models.Classify);
// a panic in a stage is recovered and returned as an error.
func (p *Pipeline) Run(ctx context.Context, query string) (res *models.Result, err error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, models.ErrEmptyQuery
	}

	done := p.metrics.QueryStarted()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			res, err = nil, fmt.Errorf("pipeline panic: %v", r)
		}
		done(outcome(res, err))
		if err != nil {
			p.logger.Warn("query failed",
				zap.String("query", q),
				zap.String("kind", string(models.Classify(err))),
				zap.Duration("took", time.Since(start)),
				zap.Error(err))
		}
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	chunks, err := p.retriever.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	// Zero chunks still go through the synthesizer so there is a single refusal path.
	ans, err := p.synthesizer.Answer(ctx, q, chunks)
	if err != nil {
		return nil, err
	}

	res = &models.Result{Query: q, Answer: ans, Context: chunks, Duration: time.Since(start)}
	p.logger.Info("query answered",
		zap.String("query", q),
		zap.Int("chunks", len(chunks)),
		zap.Ints("citations", ans.Citations),
		zap.Bool("refused", ans.Refused),
		zap.Duration("took", res.Duration))
	return res, nil
}

func outcome(res *models.Result, err error) string {
	switch {
	case err != nil:
		return string(models.Classify(err))
	case res.Answer.Refused:
		return "refused"
	default:
		return "answered"
	}
}

// Outcome is the result of one query in a batch.
type Outcome struct {
	Query  string
	Result *models.Result
	Err    error
	Kind   models.FailureKind
}

// RunBatch runs queries with at most concurrency in flight and returns one Outcome per
// query, in input order. A failed query does not stop the batch.
func (p *Pipeline) RunBatch(ctx context.Context, queries []string, concurrency int) []Outcome {
	out := make([]Outcome, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			res, err := p.Run(gctx, q)
			out[i] = Outcome{Query: q, Result: res, Err: err, Kind: models.Classify(err)}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
