package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

func TestKnowledgeBaseService_ListSourcesDeduplicates(t *testing.T) {
	kb := newTestKB()
	kb.add(t, "d1", "/docs/a.txt", "alpha")
	kb.add(t, "d2", "/docs/b.txt", "beta")
	kb.add(t, "d3", "/docs/a.txt", "alpha again")
	svc := NewKnowledgeBaseService(kb.store, kb.index)

	sources, err := svc.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, "d1", sources[0].ID)
	assert.Equal(t, "a", sources[0].Name)
	assert.Equal(t, "txt", sources[0].Type)
	assert.Equal(t, 2, sources[0].Documents)
	assert.Equal(t, "d2", sources[1].ID)
}

func TestKnowledgeBaseService_Page(t *testing.T) {
	kb := newTestKB()
	for i := range 7 {
		kb.add(t, fmt.Sprintf("d%d", i), fmt.Sprintf("/docs/%d.txt", i), "alpha")
	}
	svc := NewKnowledgeBaseService(kb.store, kb.index)

	page, err := svc.Page(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Entries, 2)

	page, err = svc.Page(context.Background(), 9, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
}

func TestKnowledgeBaseService_DeleteDocumentCascades(t *testing.T) {
	kb := newTestKB()
	kb.add(t, "d1", "/docs/a.txt", "alpha one", "alpha two")
	kb.add(t, "d2", "/docs/b.txt", "alpha three")
	svc := NewKnowledgeBaseService(kb.store, kb.index)
	ctx := context.Background()

	require.NoError(t, svc.DeleteDocument(ctx, "d1"))

	_, err := kb.store.Get(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = kb.store.GetChunk(ctx, "d1-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	hits, err := kb.index.Search(ctx, kb.embedder.vector("alpha"), 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d2", hits[0].Chunk.DocumentID)
}

func TestKnowledgeBaseService_DeleteTwiceIsNotFound(t *testing.T) {
	kb := newTestKB()
	kb.add(t, "d1", "/docs/a.txt", "alpha")
	kb.add(t, "d2", "/docs/b.txt", "beta")
	svc := NewKnowledgeBaseService(kb.store, kb.index)
	ctx := context.Background()

	require.NoError(t, svc.DeleteDocument(ctx, "d1"))
	before, err := svc.Stats(ctx)
	require.NoError(t, err)

	err = svc.DeleteDocument(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	after, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestKnowledgeBaseService_DeleteSourceRemovesSharedPath(t *testing.T) {
	kb := newTestKB()
	kb.add(t, "d1", "/docs/a.txt", "alpha")
	kb.add(t, "d2", "/docs/a.txt", "alpha v2")
	kb.add(t, "d3", "/docs/b.txt", "beta")
	svc := NewKnowledgeBaseService(kb.store, kb.index)
	ctx := context.Background()

	n, err := svc.DeleteSource(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	sources, err := svc.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "d3", sources[0].ID)
	assert.Equal(t, 1, kb.index.Len())

	_, err = svc.DeleteSource(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKnowledgeBaseService_DeleteByURI(t *testing.T) {
	kb := newTestKB()
	kb.add(t, "d1", "https://example.com/page", "alpha")
	svc := NewKnowledgeBaseService(kb.store, kb.index)

	n, err := svc.DeleteByURI(context.Background(), "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.DeleteByURI(context.Background(), "https://example.com/page")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.DeleteByURI(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestKnowledgeBaseService_GetChunks(t *testing.T) {
	kb := newTestKB()
	kb.add(t, "d1", "/docs/a.txt", "one ", "two")
	svc := NewKnowledgeBaseService(kb.store, kb.index)

	chunks, err := svc.GetChunks(context.Background(), "d1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "one ", chunks[0].Content)

	_, err = svc.GetChunks(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestKnowledgeBaseService_Stats(t *testing.T) {
	kb := newTestKB()
	kb.add(t, "d1", "/docs/a.txt", "one", "two")
	kb.add(t, "d2", "/docs/a.txt", "three")
	svc := NewKnowledgeBaseService(kb.store, kb.index)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 1, stats.Sources)
	assert.Equal(t, 3, stats.Chunks)
	assert.Equal(t, 3, stats.Vectors)
}

func TestKnowledgeBaseService_Warm(t *testing.T) {
	kb := newTestKB()
	kb.add(t, "d1", "/docs/a.txt", "alpha", "beta")
	kb.add(t, "d2", "/docs/b.txt", "gamma")
	require.NoError(t, kb.index.Close())

	fresh := newTestKB()
	fresh.store = kb.store
	svc := NewKnowledgeBaseService(fresh.store, fresh.index)

	n, err := svc.Warm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, fresh.index.Len())

	// A populated index is left alone.
	n, err = svc.Warm(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

// Queries racing a deletion never return chunks of a partly deleted document.
func TestKnowledgeBaseService_DeleteDuringSearch(t *testing.T) {
	kb := newTestKB()
	texts := make([]string, 10)
	for i := range texts {
		texts[i] = "alpha"
	}
	kb.add(t, "victim", "/docs/v.txt", texts...)
	kb.add(t, "keeper", "/docs/k.txt", texts...)
	svc := NewKnowledgeBaseService(kb.store, kb.index)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan []driven.VectorHit, 100)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				hits, err := kb.index.Search(ctx, kb.embedder.vector("alpha"), 20)
				if err == nil {
					results <- hits
				}
			}
		}()
	}
	require.NoError(t, svc.DeleteDocument(ctx, "victim"))
	wg.Wait()
	close(results)

	for hits := range results {
		victims := 0
		for _, h := range hits {
			if h.Chunk.DocumentID == "victim" {
				victims++
			}
		}
		assert.Contains(t, []int{0, 10}, victims)
	}
}

func TestKnowledgeBaseService_DeleteDocumentRestoresIndexOnStoreFailure(t *testing.T) {
	kb := newTestKB()
	kb.add(t, "d1", "/docs/a.txt", "alpha", "alpha beta")
	kb.add(t, "d2", "/docs/b.txt", "gamma")
	svc := NewKnowledgeBaseService(&failingDeleteStore{DocumentStore: kb.store, failID: "d1"}, kb.index)
	ctx := context.Background()

	err := svc.DeleteDocument(ctx, "d1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "database is locked")

	_, err = kb.store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, kb.index.Len())
	hits, err := kb.index.Search(ctx, kb.embedder.vector("alpha"), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "d1", hits[0].Chunk.DocumentID)
}

func TestKnowledgeBaseService_DeleteSourcePartialFailure(t *testing.T) {
	kb := newTestKB()
	kb.add(t, "d1", "/docs/a.txt", "alpha")
	kb.add(t, "d2", "/docs/a.txt", "alpha v2")
	kb.add(t, "d3", "/docs/b.txt", "beta")
	svc := NewKnowledgeBaseService(&failingDeleteStore{DocumentStore: kb.store, failID: "d2"}, kb.index)
	ctx := context.Background()

	n, err := svc.DeleteSource(ctx, "d1")
	require.Error(t, err)
	assert.Equal(t, 1, n)

	// d1 is gone everywhere; d2 stays listed and searchable.
	_, err = kb.store.Get(ctx, "d1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = kb.store.Get(ctx, "d2")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d2", "d3"}, kb.index.DocumentIDs())
}

// Queries racing a source deletion see every document of the source or none.
func TestKnowledgeBaseService_DeleteSourceDuringSearch(t *testing.T) {
	kb := newTestKB()
	texts := make([]string, 5)
	for i := range texts {
		texts[i] = "alpha"
	}
	kb.add(t, "v1", "/docs/v.txt", texts...)
	kb.add(t, "v2", "/docs/v.txt", texts...)
	kb.add(t, "keeper", "/docs/k.txt", texts...)
	svc := NewKnowledgeBaseService(kb.store, kb.index)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make(chan []driven.VectorHit, 100)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				hits, err := kb.index.Search(ctx, kb.embedder.vector("alpha"), 20)
				if err == nil {
					results <- hits
				}
			}
		}()
	}
	n, err := svc.DeleteSource(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	wg.Wait()
	close(results)

	for hits := range results {
		victims := 0
		for _, h := range hits {
			if h.Chunk.DocumentID != "keeper" {
				victims++
			}
		}
		assert.Contains(t, []int{0, 10}, victims)
	}
}
