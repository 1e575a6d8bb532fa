package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/medqa/internal/index"
	"github.com/hyperjump/medqa/internal/models"
)

func sampleResult() *models.Result {
	chunks := models.RetrievalResult{
		{Chunk: models.Chunk{ID: "row0-2", RowID: 0, Text: "anesthesia."}, Score: 0.5774},
		{Chunk: models.Chunk{ID: "row0-1", RowID: 0, Text: strings.Repeat("x", 250)}, Score: 0.3333},
		{Chunk: models.Chunk{ID: "row1-0", RowID: 1, Text: "Patient received local anesthesia for"}, Score: 0.2887},
		{Chunk: models.Chunk{ID: "row1-1", RowID: 1, Text: "for carpal tunnel release."}, Score: 0.1},
	}
	return &models.Result{
		Query:    "What anesthesia was used for the cholecystectomy?",
		Answer:   &models.Answer{Text: "General anesthesia [Source: Row 0].", Citations: []int{0}, Sources: chunks},
		Context:  chunks,
		Duration: 42 * time.Millisecond,
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	res := sampleResult()
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, res, OutputJSON); err != nil {
		t.Fatalf("WriteAnswer(json): %v", err)
	}
	var decoded models.Result
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != res.Query || decoded.Answer.Text != res.Answer.Text {
		t.Errorf("decoded %+v", decoded)
	}
	if len(decoded.Context) != 4 {
		t.Errorf("JSON output keeps the full context, got %d chunks", len(decoded.Context))
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleResult(), OutputText); err != nil {
		t.Fatalf("WriteAnswer(text): %v", err)
	}
	out := buf.String()
	for _, sub := range []string{
		"Answer (42ms)",
		"General anesthesia [Source: Row 0].",
		"Source Document 1 (Row 0)",
		"Source Document 3 (Row 1)",
		strings.Repeat("x", 200) + "...",
	} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
	if strings.Contains(out, "Source Document 4") {
		t.Error("at most three sources should be shown")
	}
	if strings.Contains(out, strings.Repeat("x", 201)) {
		t.Error("snippets should be truncated to 200 characters")
	}
}

func TestWriteAnswer_refusalWithoutSources(t *testing.T) {
	res := &models.Result{Answer: &models.Answer{Text: "I cannot provide an answer based on the provided medical context.", Refused: true}}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Source documents") {
		t.Errorf("no source section expected:\n%s", buf.String())
	}
}

func TestWriteAnswer_ungroundedWarning(t *testing.T) {
	res := sampleResult()
	res.Answer.Ungrounded = []int{7, 9}
	var buf bytes.Buffer
	_ = WriteAnswer(&buf, res, OutputText)
	if !strings.Contains(buf.String(), "not retrieved: 7, 9") {
		t.Errorf("missing ungrounded warning:\n%s", buf.String())
	}
}

func TestWriteAnswer_unknownFormatTreatedAsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, sampleResult(), OutputFormat("unknown")); err != nil {
		t.Fatalf("WriteAnswer(unknown): %v", err)
	}
	if !strings.Contains(buf.String(), "Answer (") {
		t.Errorf("unknown format should fall back to text; got %q", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteStats(t *testing.T) {
	s := index.Stats{
		State:          "ready",
		Path:           "/data/index",
		EmbeddingModel: "text-embedding-004",
		Dimensions:     768,
		Records:        4999,
		Chunks:         61234,
		ChunkSize:      500,
		ChunkOverlap:   50,
		DiskBytes:      3 * 1024 * 1024,
		KeywordIndex:   true,
	}
	var buf bytes.Buffer
	if err := WriteStats(&buf, s, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"ready", "text-embedding-004 (768 dims)", "61234 (size 500, overlap 50)", "3.00 MB", "Keyword index:   yes"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("stats output missing %q:\n%s", sub, buf.String())
		}
	}

	buf.Reset()
	if err := WriteStats(&buf, s, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded index.Stats
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil || decoded.Chunks != 61234 {
		t.Errorf("stats JSON: %v %+v", err, decoded)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{2 * 1024 * 1024 * 1024, "2.00 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3072.00 GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateWords(tt.s, tt.maxWords)
			if got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
