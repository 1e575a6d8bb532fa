package answer

import (
	"context"
	"testing"

	"github.com/hyperjump/medqa/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Top-3 retrieval for the anesthesia scenario (chunk size 40, overlap 5).
var scenarioContext = models.RetrievalResult{
	scored(0, 2, 61, "anesthesia."),
	scored(0, 1, 31, "cholecystectomy under general"),
	scored(1, 0, 0, "Patient received local anesthesia for"),
}

func generate(t *testing.T, query string, chunks models.RetrievalResult) string {
	t.Helper()
	out, err := NewExtractiveGenerator().Generate(context.Background(), BuildPrompt(query, chunks, 0))
	require.NoError(t, err)
	return out
}

func TestExtractiveGenerator_scenario(t *testing.T) {
	out := generate(t, "What anesthesia was used for the cholecystectomy?", scenarioContext)
	assert.Equal(t, "According to the provided context: cholecystectomy under general anesthesia. [Source: Row 0]", out)
	assert.Equal(t, []int{0}, ParseCitations(out))
}

func TestExtractiveGenerator_refuses(t *testing.T) {
	assert.Equal(t, RefusalText, generate(t, "What is the capital of France?", scenarioContext))
	assert.Equal(t, RefusalText, generate(t, "anesthesia", nil))
}

func TestExtractiveGenerator_tiesGoToRetrievalOrder(t *testing.T) {
	out := generate(t, "local anesthesia", models.RetrievalResult{
		scored(3, 0, 0, "local anesthesia given"),
		scored(5, 0, 0, "anesthesia local"),
	})
	assert.Equal(t, "According to the provided context: local anesthesia given [Source: Row 3]", out)
}

func TestSpans(t *testing.T) {
	tests := []struct {
		name   string
		chunks []models.Chunk
		want   []string
	}{
		{
			name: "overlapping",
			chunks: []models.Chunk{
				{Offset: 34, Text: "for carpal tunnel release."},
				{Offset: 0, Text: "Patient received local anesthesia for"},
			},
			want: []string{"Patient received local anesthesia for carpal tunnel release."},
		},
		{
			name:   "contained",
			chunks: []models.Chunk{{Offset: 0, Text: "abcdef"}, {Offset: 2, Text: "cd"}},
			want:   []string{"abcdef"},
		},
		{
			name:   "gap",
			chunks: []models.Chunk{{Offset: 0, Text: "first"}, {Offset: 100, Text: "second"}},
			want:   []string{"first", "second"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spans(tt.chunks))
		})
	}
}

func TestExtractiveGenerator_joinsSpans(t *testing.T) {
	out := generate(t, "fever", models.RetrievalResult{
		scored(2, 0, 0, "Fever on admission."),
		scored(2, 5, 400, "Fever resolved."),
	})
	assert.Equal(t, "According to the provided context: Fever on admission. ... Fever resolved. [Source: Row 2]", out)
}

func TestExtractiveGenerator_cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewExtractiveGenerator().Generate(ctx, Prompt{})
	assert.ErrorIs(t, err, context.Canceled)
}
