package search

import (
	"strings"
	"testing"
)

func TestHighlight(t *testing.T) {
	if Highlight("short", 10) != "short" {
		t.Error("short string should be unchanged")
	}
	if got := Highlight("long text here", 4); got != "long..." {
		t.Errorf("got %s", got)
	}
	if Highlight("x", 0) != "x" {
		t.Error("maxLen 0 should return as-is")
	}
	if got := Highlight("subjective:\n  patient   reports pain", 0); got != "subjective: patient reports pain" {
		t.Errorf("whitespace not collapsed: %q", got)
	}
	long := strings.Repeat("é", SnippetLength+10)
	if got := Highlight(long, SnippetLength); got != strings.Repeat("é", SnippetLength)+"..." {
		t.Errorf("multibyte truncation wrong: %d bytes", len(got))
	}
}
