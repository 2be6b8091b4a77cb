package flat

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

type entry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

// snapshot is never mutated after it is published.
type snapshot struct {
	entries   []entry
	dimension int
}

// Index provides exact cosine-similarity search over chunk embeddings.
type Index struct {
	mu     sync.Mutex // serialises writers
	snap   atomic.Pointer[snapshot]
	ids    map[string]struct{}
	closed bool
}

// New creates an empty index.
func New() *Index {
	idx := &Index{ids: make(map[string]struct{})}
	idx.snap.Store(&snapshot{})
	return idx
}

// Insert adds an entry. The first entry fixes the index dimensionality.
func (i *Index) Insert(ctx context.Context, e driven.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.Chunk.ID == "" || e.Chunk.DocumentID == "" {
		return fmt.Errorf("%w: index entry needs chunk and document ids", domain.ErrInvalidInput)
	}
	if len(e.Vector) == 0 {
		return fmt.Errorf("%w: empty vector for chunk %s", domain.ErrInvalidInput, e.Chunk.ID)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return fmt.Errorf("flat: index closed")
	}
	cur := i.snap.Load()
	if cur.dimension != 0 && len(e.Vector) != cur.dimension {
		return fmt.Errorf("%w: vector has %d dimensions, index has %d",
			domain.ErrInvalidInput, len(e.Vector), cur.dimension)
	}
	if _, exists := i.ids[e.Chunk.ID]; exists {
		return fmt.Errorf("chunk %s: %w", e.Chunk.ID, domain.ErrDuplicateID)
	}

	chunk := e.Chunk
	chunk.Embedding = nil
	chunk.Metadata = maps.Clone(e.Chunk.Metadata)
	vec := slices.Clone(e.Vector)

	// Appending past len(cur.entries) is invisible to readers of cur.
	next := &snapshot{
		entries:   append(cur.entries, entry{chunk: chunk, vector: vec, norm: norm(vec)}),
		dimension: len(vec),
	}
	i.ids[chunk.ID] = struct{}{}
	i.snap.Store(next)
	return nil
}

// Search returns up to k entries by descending cosine similarity.
// Equal similarities keep insertion order.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidConfig, k)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	snap := i.snap.Load()
	if len(snap.entries) == 0 {
		return []driven.VectorHit{}, nil
	}
	if len(query) != snap.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrInvalidInput, len(query), snap.dimension)
	}

	qn := norm(query)
	type scored struct {
		pos int
		sim float64
	}
	results := make([]scored, len(snap.entries))
	for pos := range snap.entries {
		results[pos] = scored{pos: pos, sim: cosine(query, qn, &snap.entries[pos])}
	}
	slices.SortStableFunc(results, func(a, b scored) int {
		switch {
		case a.sim > b.sim:
			return -1
		case a.sim < b.sim:
			return 1
		default:
			return 0
		}
	})

	n := min(k, len(results))
	hits := make([]driven.VectorHit, n)
	for j := 0; j < n; j++ {
		e := &snap.entries[results[j].pos]
		chunk := e.chunk
		chunk.Metadata = maps.Clone(e.chunk.Metadata)
		hits[j] = driven.VectorHit{Chunk: chunk, Similarity: results[j].sim}
	}
	return hits, nil
}

// DeleteByDocument removes every entry of a document.
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) (int, error) {
	removed, err := i.DeleteByDocuments(ctx, documentID)
	return len(removed), err
}

// DeleteByDocuments removes every entry of the given documents in one
// snapshot swap and returns the removed entries in insertion order.
func (i *Index) DeleteByDocuments(ctx context.Context, documentIDs ...string) ([]driven.IndexEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	victims := make(map[string]struct{}, len(documentIDs))
	for _, id := range documentIDs {
		victims[id] = struct{}{}
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	cur := i.snap.Load()
	kept := make([]entry, 0, len(cur.entries))
	var removed []driven.IndexEntry
	for _, e := range cur.entries {
		if _, ok := victims[e.chunk.DocumentID]; ok {
			delete(i.ids, e.chunk.ID)
			removed = append(removed, driven.IndexEntry{Chunk: e.chunk, Vector: e.vector})
			continue
		}
		kept = append(kept, e)
	}
	if len(removed) == 0 {
		return nil, nil
	}

	dim := cur.dimension
	if len(kept) == 0 {
		dim = 0
	}
	i.snap.Store(&snapshot{entries: kept, dimension: dim})
	return removed, nil
}

// Len returns the number of entries.
func (i *Index) Len() int {
	return len(i.snap.Load().entries)
}

// Dimensions returns the vector size, or 0 while empty.
func (i *Index) Dimensions() int {
	return i.snap.Load().dimension
}

// DocumentIDs returns the distinct documents with entries, in insertion order.
func (i *Index) DocumentIDs() []string {
	snap := i.snap.Load()
	seen := make(map[string]bool)
	var ids []string
	for _, e := range snap.entries {
		if !seen[e.chunk.DocumentID] {
			seen[e.chunk.DocumentID] = true
			ids = append(ids, e.chunk.DocumentID)
		}
	}
	return ids
}

// Close drops all entries. Further inserts fail.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	i.ids = make(map[string]struct{})
	i.snap.Store(&snapshot{})
	return nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(q []float32, qn float64, e *entry) float64 {
	if qn == 0 || e.norm == 0 {
		return 0
	}
	var dot float64
	for j, x := range q {
		dot += float64(x) * float64(e.vector[j])
	}
	return dot / (qn * e.norm)
}
