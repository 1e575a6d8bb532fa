package corpus

import (
	"archive/zip"
	"fmt"
	"html"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/hyperjump/medqa/internal/models"
	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat"
)

// Document corpora have no header. Each PDF page, or each paragraph of a DOCX, ODT, RTF
// or text file, is one record; RowID is its zero-based position in the document.

const docxBodyPath = "word/document.xml"

var (
	docxParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	docxRun       = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	blankLines    = regexp.MustCompile(`\n[ \t]*\n`)
)

func isDocument(ext string) bool {
	switch ext {
	case ".pdf", ".docx", ".odt", ".rtf", ".txt", ".md":
		return true
	}
	return false
}

func readDocument(path, ext string) ([]string, error) {
	switch ext {
	case ".pdf":
		return readPDF(path)
	case ".docx":
		return readDOCX(path)
	case ".odt", ".rtf":
		text, err := cat.File(path)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", ext, err)
		}
		return lines(text), nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return blocks(string(data)), nil
	}
}

// readPDF returns one entry per page; pages without text are empty.
func readPDF(path string) (pages []string, err error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("malformed pdf: %v", p)
		}
	}()

	pages = make([]string, r.NumPage())
	for i := range pages {
		page := r.Page(i + 1)
		if page.V.IsNull() || page.V.Key("Contents").IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i+1, err)
		}
		pages[i] = normalize(text)
	}
	return pages, nil
}

// readDOCX returns the text of each non-empty w:p paragraph in the main document body.
func readDOCX(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	var body string
	for _, f := range zr.File {
		if f.Name != docxBodyPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		body = string(data)
		break
	}
	if body == "" {
		return nil, fmt.Errorf("docx has no %s", docxBodyPath)
	}

	var paras []string
	var b strings.Builder
	for _, p := range docxParagraph.FindAllString(body, -1) {
		b.Reset()
		for _, run := range docxRun.FindAllStringSubmatch(p, -1) {
			b.WriteString(html.UnescapeString(run[1]))
		}
		if text := normalize(b.String()); text != "" {
			paras = append(paras, text)
		}
	}
	return paras, nil
}

// lines splits text into one paragraph per non-blank line.
func lines(text string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l = normalize(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// blocks splits text into paragraphs separated by blank lines, joining wrapped lines.
func blocks(text string) []string {
	var out []string
	for _, blk := range blankLines.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1) {
		if blk = normalize(blk); blk != "" {
			out = append(out, blk)
		}
	}
	return out
}

// normalize collapses runs of whitespace into single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// documentRecords turns extracted texts into records, skipping empty entries while
// keeping each record's position as its RowID.
func documentRecords(path string, texts []string) ([]models.Record, error) {
	records := make([]models.Record, 0, len(texts))
	for i, t := range texts {
		if t == "" {
			continue
		}
		records = append(records, models.Record{RowID: i, Text: t, Source: path})
	}
	if len(records) == 0 {
		return nil, errNoText
	}
	return records, nil
}
