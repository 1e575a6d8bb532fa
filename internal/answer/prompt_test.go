package answer

import (
	"strings"
	"testing"

	"github.com/hyperjump/medqa/internal/models"
)

func scored(rowID, index, offset int, text string) models.ScoredChunk {
	return models.ScoredChunk{Chunk: models.Chunk{
		ID: models.ChunkID(rowID, index), RowID: rowID, Index: index, Offset: offset, Text: text,
	}}
}

func TestBuildPrompt(t *testing.T) {
	chunks := models.RetrievalResult{
		scored(4, 0, 0, "Patient received local anesthesia."),
		scored(1, 2, 61, "anesthesia."),
	}
	p := BuildPrompt("Which anesthesia?", chunks, 0)

	if !strings.Contains(p.System, "'"+RefusalText+"'") {
		t.Error("system instruction must contain the refusal sentence")
	}
	if !strings.Contains(p.System, "[Source: Row X]") {
		t.Error("system instruction must name the citation format")
	}
	want := "Context:\n[Source: Row 4]\nPatient received local anesthesia.\n\n[Source: Row 1]\nanesthesia."
	if !strings.HasSuffix(p.System, want) {
		t.Errorf("context block wrong:\n%s", p.System)
	}
	if p.User != "Which anesthesia?" || p.Query != "Which anesthesia?" {
		t.Errorf("query not passed through: %q", p.User)
	}
	if len(p.Context) != 2 {
		t.Errorf("expected 2 shown chunks, got %d", len(p.Context))
	}
}

func TestBuildPrompt_budget(t *testing.T) {
	chunks := models.RetrievalResult{
		scored(0, 0, 0, strings.Repeat("a", 20)), // block: 15 + 1 + 20 = 36 runes
		scored(1, 0, 0, strings.Repeat("b", 20)), // +2 separator
		scored(2, 0, 0, "c"),
	}
	tests := []struct {
		name  string
		max   int
		shown int
	}{
		{"unbounded", 0, 3},
		{"first only", 40, 1},
		{"exactly two", 74, 2},
		{"one short of two", 73, 1},
		{"none fits", 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := BuildPrompt("q", chunks, tt.max)
			if len(p.Context) != tt.shown {
				t.Errorf("shown = %d, want %d", len(p.Context), tt.shown)
			}
		})
	}
}

func TestBuildPrompt_empty(t *testing.T) {
	p := BuildPrompt("q", nil, 100)
	if !strings.HasSuffix(p.System, "Context:\n") {
		t.Errorf("empty context block expected, got %q", p.System)
	}
	if len(p.Context) != 0 {
		t.Error("no chunks should be shown")
	}
}

func TestParseCitations(t *testing.T) {
	tests := []struct {
		text string
		want []int
	}{
		{"no citations", nil},
		{"General anesthesia [Source: Row 0].", []int{0}},
		{"A [Source: Row 12] B [Source: Row 3] C [Source: Row 12]", []int{12, 3}},
		{"[source: row 1] [Source: Row x] [Source:Row 2]", nil},
	}
	for _, tt := range tests {
		got := ParseCitations(tt.text)
		if len(got) != len(tt.want) {
			t.Errorf("ParseCitations(%q) = %v, want %v", tt.text, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseCitations(%q) = %v, want %v", tt.text, got, tt.want)
			}
		}
	}
}

func TestUngrounded(t *testing.T) {
	ctx := models.RetrievalResult{scored(0, 0, 0, "x"), scored(2, 1, 0, "y")}
	got := Ungrounded([]int{0, 1, 2, 7}, ctx)
	if len(got) != 2 || got[0] != 1 || got[1] != 7 {
		t.Errorf("Ungrounded = %v, want [1 7]", got)
	}
	if Ungrounded(nil, ctx) != nil {
		t.Error("no citations means nothing ungrounded")
	}
}

func TestCitation(t *testing.T) {
	c := Citation(42)
	if c != "[Source: Row 42]" {
		t.Errorf("Citation = %q", c)
	}
	if !CitationPattern.MatchString(c) {
		t.Error("CitationPattern must match CitationFormat output")
	}
}
