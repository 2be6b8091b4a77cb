package driven

import (
	"context"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Mutations are all-or-nothing: a rejected call leaves the store unchanged.
type DocumentStore interface {
	// Add registers a document together with its chunks.
	// Returns domain.ErrDuplicateID if the document ID already exists.
	Add(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error

	// Get retrieves a document by ID.
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document in position order.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunk retrieves a specific chunk by ID.
	GetChunk(ctx context.Context, id string) (*domain.Chunk, error)

	// List returns every document in insertion order.
	List(ctx context.Context) ([]domain.Document, error)

	// FindByURI returns the documents sharing a source path or URL.
	FindByURI(ctx context.Context, uri string) ([]domain.Document, error)

	// Delete removes a document and its chunks.
	// Returns domain.ErrNotFound if the document does not exist.
	Delete(ctx context.Context, id string) error

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}
