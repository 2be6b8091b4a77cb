package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
)

// Ensure KnowledgeBaseService implements the interface.
var _ driving.KnowledgeBaseService = (*KnowledgeBaseService)(nil)

// KnowledgeBaseService lists, inspects and removes ingested documents.
type KnowledgeBaseService struct {
	docStore    driven.DocumentStore
	vectorIndex driven.VectorIndex
}

// NewKnowledgeBaseService creates a new knowledge base service.
func NewKnowledgeBaseService(docStore driven.DocumentStore, vectorIndex driven.VectorIndex) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		docStore:    docStore,
		vectorIndex: vectorIndex,
	}
}

// ListSources returns unique sources in ingestion order.
func (s *KnowledgeBaseService) ListSources(ctx context.Context) ([]domain.SourceEntry, error) {
	docs, err := s.docStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return domain.UniqueSources(docs), nil
}

// Page returns one page of sources. Out of range pages are clamped.
func (s *KnowledgeBaseService) Page(ctx context.Context, page, size int) (domain.SourcePage, error) {
	entries, err := s.ListSources(ctx)
	if err != nil {
		return domain.SourcePage{}, err
	}
	return domain.Paginate(entries, page, size), nil
}

// Get retrieves a document by ID.
func (s *KnowledgeBaseService) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.docStore.Get(ctx, documentID)
}

// GetChunks returns a document's chunks in order.
func (s *KnowledgeBaseService) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	if _, err := s.docStore.Get(ctx, documentID); err != nil {
		return nil, err
	}
	return s.docStore.GetChunks(ctx, documentID)
}

// DeleteDocument removes one document with its chunks and index entries.
// Unknown IDs fail with domain.ErrNotFound and change nothing.
func (s *KnowledgeBaseService) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.docStore.Get(ctx, documentID); err != nil {
		return err
	}
	return deleteDocument(ctx, s.docStore, s.vectorIndex, documentID)
}

// DeleteSource removes every document sharing the source of documentID.
func (s *KnowledgeBaseService) DeleteSource(ctx context.Context, documentID string) (int, error) {
	doc, err := s.docStore.Get(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if doc.URI == "" {
		if err := deleteDocument(ctx, s.docStore, s.vectorIndex, doc.ID); err != nil {
			return 0, err
		}
		return 1, nil
	}
	return deleteByURI(ctx, s.docStore, s.vectorIndex, doc.URI)
}

// DeleteByURI removes every document with the given path or URL.
func (s *KnowledgeBaseService) DeleteByURI(ctx context.Context, uri string) (int, error) {
	if uri == "" {
		return 0, fmt.Errorf("%w: uri is required", domain.ErrInvalidInput)
	}
	return deleteByURI(ctx, s.docStore, s.vectorIndex, uri)
}

// Stats returns document, source, chunk and vector counts.
func (s *KnowledgeBaseService) Stats(ctx context.Context) (driving.Stats, error) {
	docs, err := s.docStore.List(ctx)
	if err != nil {
		return driving.Stats{}, fmt.Errorf("list documents: %w", err)
	}

	stats := driving.Stats{
		Documents: len(docs),
		Sources:   len(domain.UniqueSources(docs)),
	}
	for i := range docs {
		chunks, err := s.docStore.GetChunks(ctx, docs[i].ID)
		if err != nil {
			return driving.Stats{}, fmt.Errorf("get chunks: %w", err)
		}
		stats.Chunks += len(chunks)
	}
	if s.vectorIndex != nil {
		stats.Vectors = s.vectorIndex.Len()
	}
	return stats, nil
}

// Warm loads persisted chunk embeddings into an empty vector index.
// Chunks without embeddings are skipped. Returns the number of entries inserted.
func (s *KnowledgeBaseService) Warm(ctx context.Context) (int, error) {
	if s.vectorIndex == nil {
		return 0, nil
	}
	if n := s.vectorIndex.Len(); n > 0 {
		logger.Debug("Index already holds %d entries, skipping warm-up", n)
		return 0, nil
	}

	docs, err := s.docStore.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}

	done := logger.Stage("Warming index")
	defer done()

	inserted := 0
	for i := range docs {
		chunks, err := s.docStore.GetChunks(ctx, docs[i].ID)
		if err != nil {
			return inserted, fmt.Errorf("get chunks of %s: %w", docs[i].ID, err)
		}
		for j := range chunks {
			if len(chunks[j].Embedding) == 0 {
				continue
			}
			entry := driven.IndexEntry{Chunk: chunks[j], Vector: chunks[j].Embedding}
			if err := s.vectorIndex.Insert(ctx, entry); err != nil {
				if errors.Is(err, domain.ErrInvalidInput) {
					// Embedded with a different model; re-ingest to use it.
					logger.Warn("Skip chunk %s: %v", chunks[j].ID, err)
					continue
				}
				return inserted, fmt.Errorf("insert chunk %s: %w", chunks[j].ID, err)
			}
			inserted++
		}
	}
	logger.Info("Warmed index with %d vectors from %d documents", inserted, len(docs))
	return inserted, nil
}

// deleteDocument removes one document with its index entries.
func deleteDocument(ctx context.Context, store driven.DocumentStore, index driven.VectorIndex, id string) error {
	n, err := deleteDocuments(ctx, store, index, []string{id})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("delete document: %w: %s", domain.ErrNotFound, id)
	}
	return nil
}

// deleteDocuments removes the documents' index entries in one step, then the
// documents. Index entries go first so no search can return a chunk of a
// removed document. If the store fails, the entries of every document it did
// not remove are inserted again. Documents already gone are skipped.
func deleteDocuments(ctx context.Context, store driven.DocumentStore, index driven.VectorIndex, ids []string) (int, error) {
	var removed []driven.IndexEntry
	if index != nil {
		entries, err := index.DeleteByDocuments(ctx, ids...)
		if err != nil {
			return 0, fmt.Errorf("delete index entries: %w", err)
		}
		removed = entries
		logger.Debug("Removed %d index entries of %d documents", len(entries), len(ids))
	}

	deleted := 0
	for i, id := range ids {
		err := store.Delete(ctx, id)
		if err == nil {
			deleted++
			continue
		}
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		restoreEntries(ctx, index, removed, ids[i:])
		return deleted, fmt.Errorf("delete document %s: %w", id, err)
	}
	return deleted, nil
}

// restoreEntries inserts again the removed entries that belong to kept.
// Restored entries rank after existing entries with equal similarity.
func restoreEntries(ctx context.Context, index driven.VectorIndex, removed []driven.IndexEntry, kept []string) {
	ctx = context.WithoutCancel(ctx)
	keep := make(map[string]bool, len(kept))
	for _, id := range kept {
		keep[id] = true
	}
	restored := 0
	for i := range removed {
		if !keep[removed[i].Chunk.DocumentID] {
			continue
		}
		if err := index.Insert(ctx, removed[i]); err != nil {
			logger.Warn("Restore index entry %s: %v", removed[i].Chunk.ID, err)
			continue
		}
		restored++
	}
	logger.Debug("Restored %d index entries", restored)
}

// deleteByURI removes all documents with uri and returns how many were removed.
// A search sees the whole source or none of it.
func deleteByURI(ctx context.Context, store driven.DocumentStore, index driven.VectorIndex, uri string) (int, error) {
	docs, err := store.FindByURI(ctx, uri)
	if err != nil {
		return 0, fmt.Errorf("find %s: %w", uri, err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	removed, err := deleteDocuments(ctx, store, index, ids)
	if err != nil {
		return removed, err
	}
	logger.Debug("Removed %d documents for %s", removed, uri)
	return removed, nil
}
