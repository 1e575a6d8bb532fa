package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/medqa/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
var _ Storage = (*SQLiteStorage)(nil)

type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS manifest (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		schema_version INTEGER NOT NULL,
		embedding_model TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		chunk_size INTEGER NOT NULL,
		chunk_overlap INTEGER NOT NULL,
		separators TEXT NOT NULL,
		corpus_path TEXT,
		corpus_sha256 TEXT,
		records INTEGER NOT NULL,
		chunks INTEGER NOT NULL,
		built_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS chunks (
		position INTEGER PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		row_id INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		byte_offset INTEGER NOT NULL,
		source TEXT,
		content TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_row_id ON chunks(row_id, chunk_index);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveManifest inserts or replaces the index manifest.
func (s *SQLiteStorage) SaveManifest(ctx context.Context, m *models.Manifest) error {
	separatorsJSON, err := json.Marshal(m.Separators)
	if err != nil {
		return fmt.Errorf("failed to marshal separators: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO manifest (id, schema_version, embedding_model, dimensions, chunk_size,
			chunk_overlap, separators, corpus_path, corpus_sha256, records, chunks, built_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.SchemaVersion, m.EmbeddingModel, m.Dimensions, m.ChunkSize, m.ChunkOverlap,
		string(separatorsJSON), m.CorpusPath, m.CorpusSHA256, m.Records, m.Chunks, m.BuiltAt.UTC(),
	)
	return err
}

// GetManifest returns the index manifest, or ErrNotFound if none has been saved.
func (s *SQLiteStorage) GetManifest(ctx context.Context) (*models.Manifest, error) {
	var m models.Manifest
	var separatorsJSON string
	var corpusPath, corpusSHA sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT schema_version, embedding_model, dimensions, chunk_size, chunk_overlap, separators,
			corpus_path, corpus_sha256, records, chunks, built_at
		 FROM manifest WHERE id = 1`,
	).Scan(&m.SchemaVersion, &m.EmbeddingModel, &m.Dimensions, &m.ChunkSize, &m.ChunkOverlap,
		&separatorsJSON, &corpusPath, &corpusSHA, &m.Records, &m.Chunks, &m.BuiltAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("manifest: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(separatorsJSON), &m.Separators); err != nil {
		return nil, fmt.Errorf("failed to unmarshal separators: %w", err)
	}
	m.CorpusPath = corpusPath.String
	m.CorpusSHA256 = corpusSHA.String
	return &m, nil
}

const chunkColumns = `id, row_id, chunk_index, byte_offset, source, content`

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (models.Chunk, error) {
	var c models.Chunk
	var source sql.NullString
	err := row.Scan(&c.ID, &c.RowID, &c.Index, &c.Offset, &source, &c.Text)
	c.Source = source.String
	return c, err
}

// GetChunksByRowID returns all chunks of a corpus row ordered by chunk_index.
func (s *SQLiteStorage) GetChunksByRowID(ctx context.Context, rowID int) ([]models.Chunk, error) {
	return s.queryChunks(ctx,
		`SELECT `+chunkColumns+` FROM chunks WHERE row_id = ? ORDER BY chunk_index`, rowID)
}

// ListChunks returns every chunk in insertion order.
func (s *SQLiteStorage) ListChunks(ctx context.Context) ([]models.Chunk, error) {
	return s.queryChunks(ctx, `SELECT `+chunkColumns+` FROM chunks ORDER BY position`)
}

func (s *SQLiteStorage) queryChunks(ctx context.Context, query string, args ...any) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// BatchCreateChunks appends chunks in a transaction, preserving their order.
func (s *SQLiteStorage) BatchCreateChunks(ctx context.Context, chunks []models.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM chunks`).Scan(&next); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (position, `+chunkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, next+int64(i), c.ID, c.RowID, c.Index, c.Offset, c.Source, c.Text); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// CountRecords returns the number of distinct corpus rows with at least one chunk.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT row_id) FROM chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
