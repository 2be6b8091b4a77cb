package driving

import (
	"context"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// KnowledgeBaseService lists and removes ingested documents.
type KnowledgeBaseService interface {
	// ListSources returns unique sources, deduplicated by path or URL.
	ListSources(ctx context.Context) ([]domain.SourceEntry, error)

	// Page returns one page of ListSources.
	Page(ctx context.Context, page, size int) (domain.SourcePage, error)

	// Get retrieves a document by ID.
	Get(ctx context.Context, documentID string) (*domain.Document, error)

	// GetChunks returns a document's chunks in order.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteDocument removes one document, its chunks and index entries.
	DeleteDocument(ctx context.Context, documentID string) error

	// DeleteSource removes every document sharing the source path of documentID.
	// Returns the number of documents removed.
	DeleteSource(ctx context.Context, documentID string) (int, error)

	// DeleteByURI removes every document with the given path or URL.
	DeleteByURI(ctx context.Context, uri string) (int, error)

	// Stats returns document, chunk and vector counts.
	Stats(ctx context.Context) (Stats, error)

	// Warm rebuilds the vector index from persisted chunk embeddings.
	Warm(ctx context.Context) (int, error)
}

// Stats summarises the knowledge base.
type Stats struct {
	Documents int
	Sources   int
	Chunks    int
	Vectors   int
}
