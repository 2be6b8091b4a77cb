package flat

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

func entryFor(docID, chunkID string, vec ...float32) driven.IndexEntry {
	return driven.IndexEntry{
		Chunk:  domain.Chunk{ID: chunkID, DocumentID: docID, Content: "content " + chunkID},
		Vector: vec,
	}
}

func TestIndex_SearchOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	idx := New()

	require.NoError(t, idx.Insert(ctx, entryFor("d1", "a", 1, 0)))
	require.NoError(t, idx.Insert(ctx, entryFor("d1", "b", 0, 1)))
	require.NoError(t, idx.Insert(ctx, entryFor("d2", "c", 1, 1)))

	hits, err := idx.Search(ctx, []float32{1, 0.1}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, "a", hits[0].Chunk.ID)
	assert.Equal(t, "c", hits[1].Chunk.ID)
	assert.Equal(t, "b", hits[2].Chunk.ID)
	assert.GreaterOrEqual(t, hits[0].Similarity, hits[1].Similarity)
	assert.GreaterOrEqual(t, hits[1].Similarity, hits[2].Similarity)
}

func TestIndex_SearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := New()
	for _, id := range []string{"x", "y", "z"} {
		require.NoError(t, idx.Insert(ctx, entryFor("d", id, 2, 2)))
	}

	hits, err := idx.Search(ctx, []float32{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "x", hits[0].Chunk.ID)
	assert.Equal(t, "y", hits[1].Chunk.ID)
}

func TestIndex_SearchFewerThanK(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Insert(ctx, entryFor("d", "a", 1, 0)))

	hits, err := idx.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestIndex_SearchInvalidK(t *testing.T) {
	idx := New()
	_, err := idx.Search(context.Background(), []float32{1}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	_, err = idx.Search(context.Background(), []float32{1}, -3)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestIndex_SearchEmpty(t *testing.T) {
	idx := New()
	hits, err := idx.Search(context.Background(), []float32{1, 2, 3}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Insert(ctx, entryFor("d", "a", 1, 0, 0)))
	assert.Equal(t, 3, idx.Dimensions())

	err := idx.Insert(ctx, entryFor("d", "b", 1, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndex_DuplicateChunk(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Insert(ctx, entryFor("d", "a", 1)))
	err := idx.Insert(ctx, entryFor("d", "a", 1))
	assert.ErrorIs(t, err, domain.ErrDuplicateID)
	assert.Equal(t, 1, idx.Len())
}

func TestIndex_InsertRejectsEmpty(t *testing.T) {
	idx := New()
	err := idx.Insert(context.Background(), entryFor("d", "a"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = idx.Insert(context.Background(), entryFor("", "a", 1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndex_ZeroVectorScoresZero(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Insert(ctx, entryFor("d", "zero", 0, 0)))
	require.NoError(t, idx.Insert(ctx, entryFor("d", "one", 1, 0)))

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, "one", hits[0].Chunk.ID)
	assert.InDelta(t, 0.0, hits[1].Similarity, 1e-9)
}

func TestIndex_DeleteByDocument(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Insert(ctx, entryFor("d1", "a", 1, 0)))
	require.NoError(t, idx.Insert(ctx, entryFor("d2", "b", 1, 0)))
	require.NoError(t, idx.Insert(ctx, entryFor("d1", "c", 0, 1)))

	n, err := idx.DeleteByDocument(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, []string{"d2"}, idx.DocumentIDs())

	hits, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Chunk.ID)

	// Deleted chunk IDs can be reused.
	require.NoError(t, idx.Insert(ctx, entryFor("d1", "a", 1, 0)))
}

func TestIndex_DeleteByDocuments(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Insert(ctx, entryFor("d1", "a", 1, 0)))
	require.NoError(t, idx.Insert(ctx, entryFor("d2", "b", 1, 0)))
	require.NoError(t, idx.Insert(ctx, entryFor("d3", "c", 0, 1)))
	require.NoError(t, idx.Insert(ctx, entryFor("d1", "d", 0, 1)))

	removed, err := idx.DeleteByDocuments(ctx, "d1", "d3", "missing")
	require.NoError(t, err)
	require.Len(t, removed, 3)
	assert.Equal(t, "a", removed[0].Chunk.ID)
	assert.Equal(t, "c", removed[1].Chunk.ID)
	assert.Equal(t, "d", removed[2].Chunk.ID)
	assert.Equal(t, []float32{0, 1}, removed[1].Vector)
	assert.Equal(t, []string{"d2"}, idx.DocumentIDs())

	// Removed entries can be inserted again.
	for _, e := range removed {
		require.NoError(t, idx.Insert(ctx, e))
	}
	assert.Equal(t, 4, idx.Len())

	removed, err = idx.DeleteByDocuments(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestIndex_DeleteUnknownDocument(t *testing.T) {
	idx := New()
	n, err := idx.DeleteByDocument(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndex_EmptiedIndexResetsDimension(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Insert(ctx, entryFor("d", "a", 1, 0)))
	_, err := idx.DeleteByDocument(ctx, "d")
	require.NoError(t, err)
	assert.Zero(t, idx.Dimensions())

	require.NoError(t, idx.Insert(ctx, entryFor("d", "b", 1, 0, 0, 0)))
	assert.Equal(t, 4, idx.Dimensions())
}

func TestIndex_InsertCopiesInput(t *testing.T) {
	ctx := context.Background()
	idx := New()
	e := entryFor("d", "a", 1, 0)
	e.Chunk.Metadata = map[string]any{"k": "v"}
	require.NoError(t, idx.Insert(ctx, e))

	e.Vector[0] = -1
	e.Chunk.Metadata["k"] = "changed"

	hits, err := idx.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.Equal(t, "v", hits[0].Chunk.Metadata["k"])
}

func TestIndex_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idx := New()

	assert.ErrorIs(t, idx.Insert(ctx, entryFor("d", "a", 1)), context.Canceled)
	_, err := idx.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndex_Close(t *testing.T) {
	ctx := context.Background()
	idx := New()
	require.NoError(t, idx.Insert(ctx, entryFor("d", "a", 1)))
	require.NoError(t, idx.Close())
	assert.Zero(t, idx.Len())
	assert.Error(t, idx.Insert(ctx, entryFor("d", "b", 1)))
}

// Searches running alongside a document deletion see either all of the
// document's chunks or none of them.
func TestIndex_ConcurrentSearchSeesConsistentSnapshots(t *testing.T) {
	ctx := context.Background()
	idx := New()
	const perDoc = 20
	for i := 0; i < perDoc; i++ {
		require.NoError(t, idx.Insert(ctx, entryFor("victim", fmt.Sprintf("v%d", i), 1, 0)))
		require.NoError(t, idx.Insert(ctx, entryFor("keeper", fmt.Sprintf("k%d", i), 1, 0)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				hits, err := idx.Search(ctx, []float32{1, 0}, 4*perDoc)
				if err != nil {
					errs <- err
					return
				}
				victims := 0
				for _, h := range hits {
					if h.Chunk.DocumentID == "victim" {
						victims++
					}
				}
				if victims != 0 && victims != perDoc {
					errs <- fmt.Errorf("partial deletion observed: %d victim chunks", victims)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := idx.DeleteByDocument(ctx, "victim"); err != nil {
			errs <- err
		}
		for i := 0; i < perDoc; i++ {
			if err := idx.Insert(ctx, entryFor("late", fmt.Sprintf("l%d", i), 0, 1)); err != nil {
				errs <- err
				return
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 2*perDoc, idx.Len())
}
