package embedding

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/hyperjump/medqa/internal/metrics"
	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/provider"
	"github.com/hyperjump/medqa/internal/retry"
	"github.com/hyperjump/medqa/pkg/utils"
	"github.com/openai/openai-go"
	"go.uber.org/zap"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	dimensions int
	batchSize  int
	policy     retry.Policy
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*OpenAIEmbedder)

// WithLogger sets a logger for retry warnings.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.logger = l }
}

// WithMetrics records each service call.
func WithMetrics(m *metrics.Metrics) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.metrics = m }
}

// WithBatchSize sets the maximum number of texts per request.
func WithBatchSize(n int) OpenAIOption {
	return func(e *OpenAIEmbedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRetryPolicy sets the retry budget for each request.
func WithRetryPolicy(p retry.Policy) OpenAIOption {
	return func(e *OpenAIEmbedder) { e.policy = p }
}

// NewOpenAIEmbedder creates an embedder for model, which must return vectors of the
// given dimension.
func NewOpenAIEmbedder(client openai.Client, model string, dimensions int, opts ...OpenAIOption) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
		batchSize:  32,
		policy:     retry.Policy{MaxAttempts: 1},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most the configured batch size. Output order
// matches input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embedRequest(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	var resp *openai.CreateEmbeddingResponse
	attempts, err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		r, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model:          openai.EmbeddingModel(e.model),
			EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
		})
		e.metrics.EmbeddingCall(err)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, provider.IsRetryable, func(attempt int, backoff time.Duration, err error) {
		e.metrics.Retry("embedding")
		e.logger.Warn("embedding request failed, will retry",
			zap.String("model", e.model),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("embed: %w", ctxErr)
		}
		return nil, &models.EmbeddingServiceError{Model: e.model, Attempts: attempts, Err: err}
	}

	if len(resp.Data) != len(texts) {
		return nil, &models.EmbeddingMismatchError{
			Field:      "count",
			Index:      strconv.Itoa(len(resp.Data)),
			Configured: strconv.Itoa(len(texts)),
		}
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vecs := make([][]float32, len(data))
	for i, d := range data {
		vec := utils.Float64To32(d.Embedding)
		if err := checkDimensions(e.dimensions, vec); err != nil {
			return nil, err
		}
		utils.NormalizeL2(vec)
		vecs[i] = vec
	}
	return vecs, nil
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// ModelID returns the remote model name.
func (e *OpenAIEmbedder) ModelID() string { return e.model }

// Close is a no-op; the client holds no resources beyond its HTTP pool.
func (e *OpenAIEmbedder) Close() error { return nil }
