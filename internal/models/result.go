package models

import "time"

// ScoredChunk is a single retrieval hit.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"` // inner product of normalised embeddings
}

// RetrievalResult is ordered by descending score, at most K long.
type RetrievalResult []ScoredChunk

// RowIDs returns the distinct row IDs in result order.
func (r RetrievalResult) RowIDs() []int {
	seen := make(map[int]bool, len(r))
	ids := make([]int, 0, len(r))
	for _, sc := range r {
		if seen[sc.Chunk.RowID] {
			continue
		}
		seen[sc.Chunk.RowID] = true
		ids = append(ids, sc.Chunk.RowID)
	}
	return ids
}

// Answer is the synthesized text together with the chunks the model was shown.
// The two must be presented together; citations point into Sources.
type Answer struct {
	Text    string          `json:"text"`
	Sources RetrievalResult `json:"sources"`
	// Citations are the row IDs cited in Text, in first-appearance order.
	Citations []int `json:"citations"`
	// Ungrounded are cited row IDs that do not appear in Sources.
	Ungrounded []int `json:"ungrounded_citations,omitempty"`
	Refused    bool  `json:"refused"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	Query    string          `json:"query"`
	Answer   *Answer         `json:"answer"`
	Context  RetrievalResult `json:"context"`
	Duration time.Duration   `json:"duration_ns"`
}
