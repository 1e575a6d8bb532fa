package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperjump/medqa/internal/models"
	"go.uber.org/zap"
)

// Synthesizer turns a query and its retrieved chunks into an Answer with one model call.
type Synthesizer struct {
	gen             Generator
	maxContextChars int
	logger          *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithMaxContextChars bounds the context block; 0 means unbounded.
func WithMaxContextChars(n int) Option {
	return func(s *Synthesizer) { s.maxContextChars = n }
}

// WithSynthesizerLogger sets the logger used for grounding warnings.
func WithSynthesizerLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSynthesizer returns a Synthesizer that asks gen for every answer.
func NewSynthesizer(gen Generator, opts ...Option) *Synthesizer {
	s := &Synthesizer{gen: gen, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Answer builds the prompt and calls the generator exactly once, including when chunks
// is empty. An empty context always yields RefusalText.
func (s *Synthesizer) Answer(ctx context.Context, query string, chunks models.RetrievalResult) (*models.Answer, error) {
	p := BuildPrompt(query, chunks, s.maxContextChars)
	if len(p.Context) < len(chunks) {
		s.logger.Debug("context budget reached",
			zap.Int("retrieved", len(chunks)),
			zap.Int("shown", len(p.Context)),
			zap.Int("max_context_chars", s.maxContextChars))
	}

	text, err := s.gen.Generate(ctx, p)
	if err != nil {
		var genErr *models.GenerationError
		switch {
		case errors.As(err, &genErr):
			return nil, err
		case ctx.Err() != nil:
			return nil, fmt.Errorf("generate: %w", ctx.Err())
		default:
			return nil, &models.GenerationError{Model: s.gen.ModelID(), Attempts: 1, Err: err}
		}
	}

	text = strings.TrimSpace(text)
	if len(p.Context) == 0 && text != RefusalText {
		s.logger.Warn("model answered without context, replacing with refusal", zap.String("model", s.gen.ModelID()))
		text = RefusalText
	}

	ans := &models.Answer{
		Text:      text,
		Sources:   p.Context,
		Citations: ParseCitations(text),
		Refused:   strings.Contains(text, RefusalText),
	}
	ans.Ungrounded = Ungrounded(ans.Citations, p.Context)
	if len(ans.Ungrounded) > 0 {
		s.logger.Warn("answer cites rows that were not retrieved",
			zap.Ints("ungrounded", ans.Ungrounded),
			zap.Ints("retrieved", p.Context.RowIDs()))
	}
	return ans, nil
}
