// Package indexer splits corpus records into chunks and embeds them for indexing.
package indexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hyperjump/medqa/internal/config"
	"github.com/hyperjump/medqa/internal/models"
)

// Chunker splits record text into overlapping character windows, preferring to break at
// the coarsest separator that occurs in the text.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker creates a chunker with the given size and overlap (in characters). An empty
// separator list uses config.DefaultSeparators.
func NewChunker(chunkSize, chunkOverlap int, separators []string) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	if len(separators) == 0 {
		separators = config.DefaultSeparators
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   append([]string(nil), separators...),
	}, nil
}

// span is a byte range [start, end) of the text being split.
type span struct {
	start, end int
}

// Chunk splits a record into chunks. Offsets refer to the preprocessed record text.
func (c *Chunker) Chunk(record models.Record) []models.Chunk {
	text := Preprocess(record.Text)
	var spans []span
	c.split(text, span{0, len(text)}, c.separators, &spans)

	chunks := make([]models.Chunk, 0, len(spans))
	for i, s := range spans {
		chunks = append(chunks, models.Chunk{
			ID:     models.ChunkID(record.RowID, i),
			RowID:  record.RowID,
			Index:  i,
			Offset: s.start,
			Text:   text[s.start:s.end],
			Source: record.Source,
		})
	}
	return chunks
}

// ChunkAll chunks every record in order.
func (c *Chunker) ChunkAll(records []models.Record) []models.Chunk {
	var chunks []models.Chunk
	for _, r := range records {
		chunks = append(chunks, c.Chunk(r)...)
	}
	return chunks
}

func (c *Chunker) split(text string, s span, separators []string, out *[]span) {
	seg := text[s.start:s.end]
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			sep, rest = "", nil
			break
		}
		if strings.Contains(seg, candidate) {
			sep, rest = candidate, separators[i+1:]
			break
		}
	}

	var good []span
	for _, p := range pieces(text, s, sep) {
		if c.length(text, p) < c.chunkSize {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			c.merge(text, good, out)
			good = nil
		}
		if len(rest) == 0 {
			emit(text, p, out)
		} else {
			c.split(text, p, rest, out)
		}
	}
	if len(good) > 0 {
		c.merge(text, good, out)
	}
}

// pieces splits s at every occurrence of sep, keeping the separator at the start of the
// following piece. An empty sep splits into single characters.
func pieces(text string, s span, sep string) []span {
	var ps []span
	if sep == "" {
		for i := s.start; i < s.end; {
			_, size := utf8.DecodeRuneInString(text[i:s.end])
			ps = append(ps, span{i, i + size})
			i += size
		}
		return ps
	}
	seg := text[s.start:s.end]
	prev := s.start
	for from := 0; ; {
		idx := strings.Index(seg[from:], sep)
		if idx < 0 {
			break
		}
		at := s.start + from + idx
		if at > prev {
			ps = append(ps, span{prev, at})
		}
		prev = at
		from += idx + len(sep)
	}
	if s.end > prev {
		ps = append(ps, span{prev, s.end})
	}
	return ps
}

// merge greedily packs contiguous pieces into windows of at most chunkSize characters,
// carrying a tail of at most chunkOverlap characters into the next window.
func (c *Chunker) merge(text string, splits []span, out *[]span) {
	var cur []span
	total := 0
	for _, d := range splits {
		n := c.length(text, d)
		if total+n > c.chunkSize && len(cur) > 0 {
			emit(text, span{cur[0].start, cur[len(cur)-1].end}, out)
			for total > c.chunkOverlap || (total+n > c.chunkSize && total > 0) {
				total -= c.length(text, cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, d)
		total += n
	}
	if len(cur) > 0 {
		emit(text, span{cur[0].start, cur[len(cur)-1].end}, out)
	}
}

func (c *Chunker) length(text string, s span) int {
	return utf8.RuneCountInString(text[s.start:s.end])
}

// emit appends s with surrounding whitespace trimmed; empty windows are dropped.
func emit(text string, s span, out *[]span) {
	seg := text[s.start:s.end]
	trimmed := strings.TrimLeftFunc(seg, unicode.IsSpace)
	start := s.start + len(seg) - len(trimmed)
	trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace)
	if trimmed == "" {
		return
	}
	*out = append(*out, span{start, start + len(trimmed)})
}

// Size returns the maximum chunk length in characters.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the maximum overlap between consecutive chunks in characters.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Separators returns a copy of the separator priority list.
func (c *Chunker) Separators() []string { return append([]string(nil), c.separators...) }
