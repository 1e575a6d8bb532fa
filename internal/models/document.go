// Package models defines core data structures for corpus records, chunks, retrieval results, and answers.
package models

import "fmt"

// Record is one row of the source dataset. RowID is the zero-based row position
// (header excluded) and is the only key citations refer to.
type Record struct {
	RowID  int    `json:"row_id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Chunk is a contiguous slice of a Record's text used as the retrieval unit.
// Text equals record.Text[Offset : Offset+len(Text)] after line-ending normalisation.
type Chunk struct {
	ID     string `json:"id" db:"id"`
	RowID  int    `json:"row_id" db:"row_id"`
	Index  int    `json:"chunk_index" db:"chunk_index"`
	Offset int    `json:"offset" db:"byte_offset"`
	Text   string `json:"text" db:"content"`
	Source string `json:"source,omitempty" db:"source"`
}

// ChunkID returns the deterministic chunk identifier for a row and chunk position.
func ChunkID(rowID, index int) string {
	return fmt.Sprintf("row%d-%d", rowID, index)
}

// End returns the byte offset just past the chunk in its parent record.
func (c *Chunk) End() int {
	return c.Offset + len(c.Text)
}
