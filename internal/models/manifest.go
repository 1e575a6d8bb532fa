package models

import "time"

// SchemaVersion is the persisted index layout version.
const SchemaVersion = 1

// Manifest describes how a persisted index was built. An index may only be queried with
// the embedding model and dimension it records.
type Manifest struct {
	SchemaVersion  int       `json:"schema_version"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	Separators     []string  `json:"separators"`
	CorpusPath     string    `json:"corpus_path"`
	CorpusSHA256   string    `json:"corpus_sha256,omitempty"`
	Records        int       `json:"records"`
	Chunks         int       `json:"chunks"`
	BuiltAt        time.Time `json:"built_at"`
}
