// Package corpus loads the clinical transcript dataset into records.
package corpus

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/medqa/internal/models"
	"github.com/xuri/excelize/v2"
)

// Options controls how rows become record text.
type Options struct {
	// Columns restricts which columns are included in a record's text, in header order.
	// Empty means all columns.
	Columns []string
}

var (
	errEmpty       = errors.New("file is empty")
	errNoRecords   = errors.New("file has a header but no rows")
	errNoText      = errors.New("document has no text")
	errUnsupported = errors.New("unsupported corpus format (supported: .csv, .xlsx, .pdf, .docx, .odt, .rtf, .txt, .md)")
)

// Load reads the corpus at path. For tables the first row is the header and each later
// row becomes one Record in file order, with a zero-based RowID. Documents are split into
// pages or paragraphs instead. Any failure is a *models.LoadError.
func Load(path string, opts Options) ([]models.Record, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if isDocument(ext) {
		texts, err := readDocument(path, ext)
		if err != nil {
			return nil, &models.LoadError{Path: path, Err: err}
		}
		records, err := documentRecords(path, texts)
		if err != nil {
			return nil, &models.LoadError{Path: path, Err: err}
		}
		return records, nil
	}

	var (
		rows [][]string
		err  error
	)
	switch ext {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readXLSX(path)
	default:
		err = errUnsupported
	}
	if err != nil {
		return nil, &models.LoadError{Path: path, Err: err}
	}

	records, err := toRecords(path, rows, opts)
	if err != nil {
		return nil, &models.LoadError{Path: path, Err: err}
	}
	return records, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errEmpty
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	// Trailing empty cells are omitted; pad to the header width.
	if len(rows) > 0 {
		width := len(rows[0])
		for i := 1; i < len(rows); i++ {
			if len(rows[i]) > width {
				return nil, fmt.Errorf("row %d has %d cells, header has %d", i, len(rows[i]), width)
			}
			for len(rows[i]) < width {
				rows[i] = append(rows[i], "")
			}
		}
	}
	return rows, nil
}

func toRecords(path string, rows [][]string, opts Options) ([]models.Record, error) {
	if len(rows) == 0 {
		return nil, errEmpty
	}
	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	cols, err := selectColumns(header, opts.Columns)
	if err != nil {
		return nil, err
	}
	if len(rows) == 1 {
		return nil, errNoRecords
	}

	records := make([]models.Record, 0, len(rows)-1)
	var b strings.Builder
	for i, row := range rows[1:] {
		b.Reset()
		for j, col := range cols {
			if j > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(strings.TrimSpace(header[col]))
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(row[col]))
		}
		records = append(records, models.Record{RowID: i, Text: b.String(), Source: path})
	}
	return records, nil
}

func selectColumns(header, want []string) ([]int, error) {
	if len(want) == 0 {
		cols := make([]int, len(header))
		for i := range header {
			cols[i] = i
		}
		return cols, nil
	}
	wanted := make(map[string]bool, len(want))
	for _, w := range want {
		wanted[strings.TrimSpace(w)] = true
	}
	var cols []int
	for i, h := range header {
		if wanted[strings.TrimSpace(h)] {
			cols = append(cols, i)
			delete(wanted, strings.TrimSpace(h))
		}
	}
	if len(wanted) > 0 {
		for _, w := range want {
			if wanted[strings.TrimSpace(w)] {
				return nil, fmt.Errorf("column %q not found in header", w)
			}
		}
	}
	return cols, nil
}

// Checksum returns the hex SHA-256 of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
