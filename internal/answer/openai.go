package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/medqa/internal/metrics"
	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/provider"
	"github.com/hyperjump/medqa/internal/retry"
	"github.com/openai/openai-go"
	"go.uber.org/zap"
)

// DefaultTemperature keeps answers close to the context.
const DefaultTemperature = 0.3

var errEmptyResponse = errors.New("model returned no content")

// OpenAIGenerator calls an OpenAI-compatible /chat/completions endpoint.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	policy      retry.Policy
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// OpenAIOption configures an OpenAIGenerator.
type OpenAIOption func(*OpenAIGenerator)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) OpenAIOption {
	return func(g *OpenAIGenerator) { g.temperature = t }
}

// WithMaxTokens caps the completion length; 0 leaves it to the service.
func WithMaxTokens(n int) OpenAIOption {
	return func(g *OpenAIGenerator) { g.maxTokens = n }
}

// WithRetryPolicy sets the per-attempt timeout and backoff for chat calls.
func WithRetryPolicy(p retry.Policy) OpenAIOption {
	return func(g *OpenAIGenerator) { g.policy = p }
}

// WithMetrics records generation calls and retries on m.
func WithMetrics(m *metrics.Metrics) OpenAIOption {
	return func(g *OpenAIGenerator) { g.metrics = m }
}

// WithLogger sets the logger used for retry warnings. A nil logger is ignored.
func WithLogger(l *zap.Logger) OpenAIOption {
	return func(g *OpenAIGenerator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewOpenAIGenerator creates a generator for model.
func NewOpenAIGenerator(client openai.Client, model string, opts ...OpenAIOption) *OpenAIGenerator {
	g := &OpenAIGenerator{
		client:      client,
		model:       model,
		temperature: DefaultTemperature,
		policy:      retry.Policy{MaxAttempts: 1},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate sends the system instruction and the query as one chat completion.
func (g *OpenAIGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(p.User),
		},
		Temperature: openai.Float(g.temperature),
	}
	if g.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(g.maxTokens))
	}

	var text string
	attempts, err := retry.Do(ctx, g.policy, func(ctx context.Context) error {
		resp, err := g.client.Chat.Completions.New(ctx, params)
		g.metrics.GenerationCall(err)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return errEmptyResponse
		}
		text = resp.Choices[0].Message.Content
		return nil
	}, provider.IsRetryable, func(attempt int, backoff time.Duration, err error) {
		g.metrics.Retry("generation")
		g.logger.Warn("generation request failed, will retry",
			zap.String("model", g.model),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("generate: %w", ctxErr)
		}
		return "", &models.GenerationError{Model: g.model, Attempts: attempts, Err: err}
	}
	return text, nil
}

// ModelID returns the remote model name.
func (g *OpenAIGenerator) ModelID() string { return g.model }
