// Package storage defines the persistence interface for index manifests and chunks.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/medqa/internal/models"
)

// ErrNotFound is returned when a manifest or corpus row does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines index metadata and chunk persistence operations.
type Storage interface {
	// Manifest operations
	SaveManifest(ctx context.Context, m *models.Manifest) error
	GetManifest(ctx context.Context) (*models.Manifest, error)

	// Chunk operations
	GetChunksByRowID(ctx context.Context, rowID int) ([]models.Chunk, error)
	// ListChunks returns every chunk in insertion order.
	ListChunks(ctx context.Context) ([]models.Chunk, error)

	// Batch operations
	BatchCreateChunks(ctx context.Context, chunks []models.Chunk) error

	// Stats
	CountChunks(ctx context.Context) (int64, error)
	CountRecords(ctx context.Context) (int64, error)

	Close() error
}
