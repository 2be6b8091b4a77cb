package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Values are copied on the way in and out so callers never share state.
type DocumentStore struct {
	mu        sync.RWMutex
	order     []string
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
	owners    map[string]string // chunk ID -> document ID
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
		owners:    make(map[string]string),
	}
}

// Add registers a document and its chunks.
func (s *DocumentStore) Add(_ context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[doc.ID]; exists {
		return fmt.Errorf("document %s: %w", doc.ID, domain.ErrDuplicateID)
	}
	seen := make(map[string]bool, len(chunks))
	for i := range chunks {
		c := &chunks[i]
		if c.DocumentID != doc.ID {
			return fmt.Errorf("%w: chunk %s belongs to %q, not %q", domain.ErrInvalidInput, c.ID, c.DocumentID, doc.ID)
		}
		if _, exists := s.owners[c.ID]; exists || seen[c.ID] {
			return fmt.Errorf("chunk %s: %w", c.ID, domain.ErrDuplicateID)
		}
		seen[c.ID] = true
	}

	s.documents[doc.ID] = copyDocument(doc)
	stored := make([]domain.Chunk, len(chunks))
	for i := range chunks {
		stored[i] = copyChunk(&chunks[i])
		s.owners[chunks[i].ID] = doc.ID
	}
	slices.SortStableFunc(stored, func(a, b domain.Chunk) int { return a.Position - b.Position })
	s.chunks[doc.ID] = stored
	s.order = append(s.order, doc.ID)
	return nil
}

// Get retrieves a document by ID.
func (s *DocumentStore) Get(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyDocument(&doc)
	return &out, nil
}

// GetChunks retrieves all chunks for a document.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks, ok := s.chunks[documentID]
	if !ok {
		return nil, nil
	}
	out := make([]domain.Chunk, len(chunks))
	for i := range chunks {
		out[i] = copyChunk(&chunks[i])
	}
	return out, nil
}

// GetChunk retrieves a specific chunk by ID.
func (s *DocumentStore) GetChunk(_ context.Context, id string) (*domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docID, ok := s.owners[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	for i := range s.chunks[docID] {
		if s.chunks[docID][i].ID == id {
			out := copyChunk(&s.chunks[docID][i])
			return &out, nil
		}
	}
	return nil, domain.ErrNotFound
}

// List returns every document in insertion order.
func (s *DocumentStore) List(_ context.Context) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Document, 0, len(s.order))
	for _, id := range s.order {
		doc := s.documents[id]
		out = append(out, copyDocument(&doc))
	}
	return out, nil
}

// FindByURI returns the documents sharing a source path or URL.
func (s *DocumentStore) FindByURI(_ context.Context, uri string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Document
	for _, id := range s.order {
		doc := s.documents[id]
		if doc.URI == uri {
			out = append(out, copyDocument(&doc))
		}
	}
	return out, nil
}

// Delete removes a document and its chunks.
func (s *DocumentStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	for _, c := range s.chunks[id] {
		delete(s.owners, c.ID)
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

// Count returns the number of stored documents.
func (s *DocumentStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), nil
}

// Close releases resources (no-op for memory store).
func (s *DocumentStore) Close() error {
	return nil
}

func copyDocument(d *domain.Document) domain.Document {
	out := *d
	out.Metadata = maps.Clone(d.Metadata)
	return out
}

func copyChunk(c *domain.Chunk) domain.Chunk {
	out := *c
	out.Metadata = maps.Clone(c.Metadata)
	if c.Embedding != nil {
		out.Embedding = slices.Clone(c.Embedding)
	}
	return out
}
