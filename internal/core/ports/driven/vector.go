package driven

import (
	"context"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// VectorIndex provides semantic similarity retrieval over chunk embeddings.
// Each Search observes one consistent snapshot of the index.
type VectorIndex interface {
	// Insert adds an entry. The first insert fixes the dimensionality.
	Insert(ctx context.Context, entry IndexEntry) error

	// Search returns up to k entries by descending cosine similarity,
	// ties broken by insertion order. Returns domain.ErrInvalidConfig if k <= 0.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// DeleteByDocument removes every entry of a document and returns how many were removed.
	DeleteByDocument(ctx context.Context, documentID string) (int, error)

	// DeleteByDocuments removes the entries of several documents atomically:
	// a Search sees either all of them or none. The removed entries are
	// returned in insertion order so a caller can insert them again.
	DeleteByDocuments(ctx context.Context, documentIDs ...string) ([]IndexEntry, error)

	// Len returns the number of entries.
	Len() int

	// Dimensions returns the vector size, or 0 while empty.
	Dimensions() int

	// Close releases resources.
	Close() error
}

// IndexEntry pairs a chunk with its embedding.
// The chunk is stored by value so retrieval never reads the document store.
type IndexEntry struct {
	// Chunk is the indexed chunk. Its Embedding field is ignored.
	Chunk domain.Chunk

	// Vector is the chunk embedding.
	Vector []float32
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Chunk is the matched chunk.
	Chunk domain.Chunk

	// Similarity is the cosine similarity (-1..1).
	Similarity float64
}
