package answer

import (
	"context"
	"sort"
	"strings"

	"github.com/hyperjump/medqa/internal/embedding"
	"github.com/hyperjump/medqa/internal/models"
)

// ExtractiveModelID identifies answers produced by ExtractiveGenerator.
const ExtractiveModelID = "extractive-v1"

// ExtractiveGenerator answers offline by quoting context. It picks the row whose chunks
// contain the most distinct query terms, merges that row's chunks into contiguous spans
// and cites the row. With no query term in the context it returns RefusalText.
type ExtractiveGenerator struct{}

// NewExtractiveGenerator returns the offline generator.
func NewExtractiveGenerator() *ExtractiveGenerator { return &ExtractiveGenerator{} }

// ModelID returns ExtractiveModelID.
func (g *ExtractiveGenerator) ModelID() string { return ExtractiveModelID }

// Generate quotes the best matching row of p.Context, or returns RefusalText.
func (g *ExtractiveGenerator) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	query := make(map[string]bool)
	for _, t := range embedding.Terms(p.Query) {
		query[t] = true
	}

	var (
		order []int
		byRow = make(map[int][]models.Chunk)
	)
	for _, sc := range p.Context {
		id := sc.Chunk.RowID
		if _, ok := byRow[id]; !ok {
			order = append(order, id)
		}
		byRow[id] = append(byRow[id], sc.Chunk)
	}

	best, bestHits := -1, 0
	for _, id := range order {
		if n := coverage(query, byRow[id]); n > bestHits {
			best, bestHits = id, n
		}
	}
	if best < 0 {
		return RefusalText, nil
	}
	return "According to the provided context: " + strings.Join(spans(byRow[best]), " ... ") + " " + Citation(best), nil
}

func coverage(query map[string]bool, chunks []models.Chunk) int {
	found := make(map[string]bool)
	for _, ch := range chunks {
		for _, t := range embedding.Terms(ch.Text) {
			if query[t] {
				found[t] = true
			}
		}
	}
	return len(found)
}

// spans merges chunks of one record that overlap or are separated by a single
// whitespace character.
func spans(chunks []models.Chunk) []string {
	sorted := append([]models.Chunk(nil), chunks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	var (
		out []string
		cur strings.Builder
		end = -1
	)
	for _, ch := range sorted {
		switch {
		case end >= 0 && ch.End() <= end:
			// contained in the current span
		case end >= 0 && ch.Offset <= end:
			cur.WriteString(ch.Text[end-ch.Offset:])
			end = ch.End()
		case end >= 0 && ch.Offset == end+1:
			cur.WriteString(" ")
			cur.WriteString(ch.Text)
			end = ch.End()
		default:
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			cur.WriteString(ch.Text)
			end = ch.End()
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
