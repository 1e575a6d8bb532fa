// Package answer builds the citation-enforcing prompt, calls the language model once and
// checks the citations it returns against the chunks it was shown.
package answer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/medqa/internal/models"
)

// RefusalText is the exact sentence the model must answer with when the context does not
// contain the answer.
const RefusalText = "I cannot provide an answer based on the provided medical context."

// CitationFormat renders a citation token for a row ID.
const CitationFormat = "[Source: Row %d]"

// CitationPattern matches citation tokens; the first group is the row ID.
var CitationPattern = regexp.MustCompile(`\[Source: Row (\d+)\]`)

const systemInstruction = "You are a helpful and extremely safe medical assistant. Your primary task is to answer the user's question " +
	"**ONLY** based on the provided clinical context below. You must not use any external knowledge. " +
	"If the context does not contain the answer, you must state clearly: '" + RefusalText + "' " +
	"For every piece of information you provide, you **MUST** include a citation, referencing the original source document " +
	"using the format: [Source: Row X]. Each context passage is headed by its citation."

// Prompt is one generation request.
type Prompt struct {
	System string
	User   string
	Query  string
	// Context holds the chunks shown to the model, in retrieval order.
	Context models.RetrievalResult
}

// Citation renders the citation token for rowID.
func Citation(rowID int) string {
	return fmt.Sprintf(CitationFormat, rowID)
}

// BuildPrompt assembles the system instruction, the context block and the query. Chunks
// are added in order while the context block stays within maxContextChars runes
// (0 means unbounded); the first chunk that does not fit ends the block.
func BuildPrompt(query string, chunks models.RetrievalResult, maxContextChars int) Prompt {
	var (
		b     strings.Builder
		shown = make(models.RetrievalResult, 0, len(chunks))
		used  int
	)
	for _, sc := range chunks {
		block := Citation(sc.Chunk.RowID) + "\n" + sc.Chunk.Text
		n := utf8.RuneCountInString(block)
		if len(shown) > 0 {
			n += 2
		}
		if maxContextChars > 0 && used+n > maxContextChars {
			break
		}
		if len(shown) > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
		used += n
		shown = append(shown, sc)
	}
	return Prompt{
		System:  systemInstruction + "\n\nContext:\n" + b.String(),
		User:    query,
		Query:   query,
		Context: shown,
	}
}

// ParseCitations returns the distinct row IDs cited in text, in first-appearance order.
func ParseCitations(text string) []int {
	var ids []int
	seen := make(map[int]bool)
	for _, m := range CitationPattern.FindAllStringSubmatch(text, -1) {
		id, err := strconv.Atoi(m[1])
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// Ungrounded returns the cited row IDs that do not belong to any chunk in context.
func Ungrounded(citations []int, context models.RetrievalResult) []int {
	rows := make(map[int]bool, len(context))
	for _, sc := range context {
		rows[sc.Chunk.RowID] = true
	}
	var out []int
	for _, id := range citations {
		if !rows[id] {
			out = append(out, id)
		}
	}
	return out
}
