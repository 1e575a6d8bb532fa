// Package cli renders pipeline results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/medqa/internal/index"
	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/search"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// MaxSources is the number of supporting chunks shown with an answer.
const MaxSources = 3

// ParseFormat validates an output format flag.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON:
		return f, nil
	case "":
		return OutputText, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

// WriteAnswer writes a pipeline result to w in the given format.
func WriteAnswer(w io.Writer, res *models.Result, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	default:
		writeAnswerText(w, res)
		return nil
	}
}

func writeAnswerText(w io.Writer, res *models.Result) {
	fmt.Fprintf(w, "\nAnswer (%dms)\n", res.Duration.Milliseconds())
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%s\n", res.Answer.Text)
	if len(res.Answer.Ungrounded) > 0 {
		fmt.Fprintf(w, "\nWarning: cites rows that were not retrieved: %s\n", joinInts(res.Answer.Ungrounded))
	}
	if len(res.Context) == 0 {
		return
	}
	fmt.Fprintln(w, "\n--- Source documents ---")
	for i, sc := range res.Context {
		if i == MaxSources {
			break
		}
		fmt.Fprintf(w, "Source Document %d (Row %d) | Score: %.4f\n", i+1, sc.Chunk.RowID, sc.Score)
		fmt.Fprintf(w, "%s\n\n", search.Highlight(sc.Chunk.Text, search.SnippetLength))
	}
}

// WriteStats writes index metadata to w in the given format.
func WriteStats(w io.Writer, s index.Stats, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "State:           %s\n", s.State)
	fmt.Fprintf(w, "Path:            %s\n", s.Path)
	fmt.Fprintf(w, "Embedding model: %s (%d dims)\n", s.EmbeddingModel, s.Dimensions)
	fmt.Fprintf(w, "Records:         %d\n", s.Records)
	fmt.Fprintf(w, "Chunks:          %d (size %d, overlap %d)\n", s.Chunks, s.ChunkSize, s.ChunkOverlap)
	keywords := "no"
	if s.KeywordIndex {
		keywords = "yes"
	}
	fmt.Fprintf(w, "Keyword index:   %s\n", keywords)
	if s.CorpusPath != "" {
		fmt.Fprintf(w, "Corpus:          %s\n", s.CorpusPath)
	}
	if !s.BuiltAt.IsZero() {
		fmt.Fprintf(w, "Built:           %s\n", s.BuiltAt.Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Fprintf(w, "Disk usage:      %s\n", FormatBytes(s.DiskBytes))
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatBytes renders n in B, KB, MB or GB.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 2; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(n)/float64(div), "KMG"[exp])
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
