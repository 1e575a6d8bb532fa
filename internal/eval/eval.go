// Package eval runs a query set through the pipeline and writes one row per query.
package eval

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/medqa/internal/models"
	"github.com/hyperjump/medqa/internal/pipeline"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Values recorded for a query that failed.
const (
	FailedAnswer  = "ERROR"
	FailedSources = "Error during retrieval."
)

// Header is the column layout of evaluation output.
var Header = []string{"Query", "Answer", "Source_Documents", "Error"}

// Row is one evaluated query.
type Row struct {
	Query           string
	Answer          string
	SourceDocuments string
	Error           string
	Refused         bool
}

// Report is the outcome of an evaluation run.
type Report struct {
	Rows     []Row
	Answered int
	Refused  int
	Failed   int
	Took     time.Duration
}

// BatchRunner is satisfied by *pipeline.Pipeline.
type BatchRunner interface {
	RunBatch(ctx context.Context, queries []string, concurrency int) []pipeline.Outcome
}

// Evaluate runs every query and collects the results. Failed queries are recorded and
// do not stop the run.
func Evaluate(ctx context.Context, runner BatchRunner, queries []string, concurrency int, logger *zap.Logger) *Report {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()
	logger.Info("starting evaluation", zap.Int("queries", len(queries)), zap.Int("concurrency", concurrency))

	outcomes := runner.RunBatch(ctx, queries, concurrency)
	r := &Report{Rows: make([]Row, len(outcomes))}
	for i, o := range outcomes {
		r.Rows[i] = NewRow(o)
		switch {
		case o.Err != nil:
			r.Failed++
			logger.Warn("query failed", zap.Int("n", i+1), zap.String("query", o.Query), zap.Error(o.Err))
		case o.Result.Answer.Refused:
			r.Refused++
		default:
			r.Answered++
		}
	}
	r.Took = time.Since(start)
	logger.Info("evaluation complete",
		zap.Int("answered", r.Answered),
		zap.Int("refused", r.Refused),
		zap.Int("failed", r.Failed),
		zap.Duration("took", r.Took))
	return r
}

// NewRow converts a pipeline outcome to an output row.
func NewRow(o pipeline.Outcome) Row {
	if o.Err != nil {
		return Row{Query: o.Query, Answer: FailedAnswer, SourceDocuments: FailedSources, Error: string(o.Kind)}
	}
	return Row{
		Query:           o.Query,
		Answer:          o.Result.Answer.Text,
		SourceDocuments: FormatSources(o.Result.Context),
		Refused:         o.Result.Answer.Refused,
	}
}

// FormatSources renders retrieved chunks as "[SOURCE ROW n]:\n<text>" blocks separated
// by blank lines.
func FormatSources(chunks models.RetrievalResult) string {
	parts := make([]string, len(chunks))
	for i, sc := range chunks {
		parts[i] = fmt.Sprintf("[SOURCE ROW %d]:\n%s", sc.Chunk.RowID, sc.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}

func (r Row) values() []string {
	return []string{r.Query, r.Answer, r.SourceDocuments, r.Error}
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes rows to the first sheet of a new workbook at path.
func WriteXLSX(path string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	write := func(n int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		row := make([]any, len(values))
		for i, v := range values {
			row[i] = v
		}
		return f.SetSheetRow(sheet, cell, &row)
	}
	if err := write(1, Header); err != nil {
		return err
	}
	for i, r := range rows {
		if err := write(i+2, r.values()); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// WriteFile writes rows to path as .xlsx or, for any other extension, CSV.
func WriteFile(path string, rows []Row) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return WriteXLSX(path, rows)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
