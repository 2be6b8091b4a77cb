package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/postprocessors"
)

func newTestIngest(kb *testKB, settings domain.IngestSettings) *IngestService {
	return NewIngestService(kb.store, kb.index, kb.embedder, mockNormaliserRegistry{},
		postprocessors.NewDefaultRegistry(), settings)
}

func textFile(name, content string) domain.RawDocument {
	return domain.RawDocument{
		Name:     name,
		URI:      "/uploads/" + name,
		Kind:     domain.SourceKindFile,
		MIMEType: "text/plain",
		Size:     int64(len(content)),
		Content:  []byte(content),
	}
}

func TestIngestService_ChunksHundredCharacterDocument(t *testing.T) {
	kb := newTestKB()
	svc := newTestIngest(kb, domain.DefaultAppSettings().Ingest)
	content := strings.Repeat("0123456789", 10)

	report, err := svc.Ingest(context.Background(),
		[]domain.RawDocument{textFile("hundred.txt", content)},
		domain.ChunkingConfig{ChunkSize: 40, Overlap: 10})
	require.NoError(t, err)
	require.NoError(t, report.Err())
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	assert.Equal(t, "hundred.txt", res.Name)
	assert.Equal(t, "txt", res.Type)
	assert.Equal(t, int64(100), res.Size)
	assert.Equal(t, 3, res.Chunks)

	chunks, err := kb.store.GetChunks(context.Background(), res.DocumentID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.LessOrEqual(t, c.Len(), 40)
		if i > 0 {
			assert.Equal(t, 10, c.Overlap)
			assert.Equal(t, chunks[i-1].End-10, c.Start)
		}
	}
	assert.Equal(t, 100, chunks[2].End)

	var rebuilt strings.Builder
	for i := range chunks {
		rebuilt.WriteString(chunks[i].Fresh())
	}
	assert.Equal(t, content, rebuilt.String())
	assert.Equal(t, 3, kb.index.Len())
}

func TestIngestService_RecordsDocumentMetadata(t *testing.T) {
	kb := newTestKB()
	svc := newTestIngest(kb, domain.DefaultAppSettings().Ingest)

	report, err := svc.Ingest(context.Background(),
		[]domain.RawDocument{textFile("Notes.MD", "alpha notes")},
		domain.ChunkingConfig{ChunkSize: 100, Overlap: 0})
	require.NoError(t, err)

	doc, err := kb.store.Get(context.Background(), report.Results[0].DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/Notes.MD", doc.URI)
	assert.Equal(t, "md", doc.FileType)
	assert.Equal(t, "Notes", doc.Name())
	assert.Equal(t, "Notes.MD", doc.Metadata[domain.MetaFileName])
	assert.Len(t, doc.Metadata[domain.MetaContentHash], 64)
	assert.False(t, doc.CreatedAt.IsZero())

	chunks, err := kb.store.GetChunks(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.NotEmpty(t, chunks[0].Embedding)
	assert.Equal(t, "Notes.MD", chunks[0].MetaString(domain.MetaFileName))
}

func TestIngestService_InvalidChunkingChangesNothing(t *testing.T) {
	tests := []domain.ChunkingConfig{
		{ChunkSize: 0, Overlap: 0},
		{ChunkSize: 10, Overlap: 10},
		{ChunkSize: 10, Overlap: -1},
		{ChunkSize: 5000, Overlap: 0},
	}

	for _, cfg := range tests {
		kb := newTestKB()
		svc := newTestIngest(kb, domain.DefaultAppSettings().Ingest)

		report, err := svc.Ingest(context.Background(), []domain.RawDocument{textFile("a.txt", "alpha")}, cfg)
		assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		assert.Nil(t, report)

		count, err := kb.store.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Zero(t, kb.embedder.Calls())
	}
}

func TestIngestService_FailuresDoNotStopSiblings(t *testing.T) {
	kb := newTestKB()
	kb.embedder.failOn = "POISON"
	settings := domain.DefaultAppSettings().Ingest
	settings.MaxFileSize = 1000
	svc := newTestIngest(kb, settings)

	broken := textFile("broken.bin", "data")
	broken.MIMEType = "application/broken"
	huge := textFile("huge.txt", strings.Repeat("a", 2000))

	files := []domain.RawDocument{
		textFile("good1.txt", "alpha"),
		broken,
		textFile("poison.txt", "POISON pill"),
		huge,
		textFile("good2.txt", "beta"),
	}
	report, err := svc.Ingest(context.Background(), files, domain.ChunkingConfig{ChunkSize: 100, Overlap: 0})
	require.NoError(t, err)
	require.Len(t, report.Results, 5)

	assert.NoError(t, report.Results[0].Err)
	assert.ErrorIs(t, report.Results[1].Err, domain.ErrUnsupportedType)
	assert.Error(t, report.Results[2].Err)
	assert.ErrorIs(t, report.Results[3].Err, domain.ErrInvalidInput)
	assert.NoError(t, report.Results[4].Err)

	assert.Equal(t, 2, report.Succeeded())
	assert.Equal(t, 3, report.Failed())
	joined := report.Err()
	require.Error(t, joined)
	assert.Contains(t, joined.Error(), "broken.bin")
	assert.Contains(t, joined.Error(), "poison.txt")
	assert.ErrorIs(t, joined, domain.ErrUnsupportedType)

	count, err := kb.store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, kb.index.Len())
}

func TestIngestService_SamePathKeepsBoth(t *testing.T) {
	kb := newTestKB()
	svc := newTestIngest(kb, domain.DefaultAppSettings().Ingest)
	cfg := domain.ChunkingConfig{ChunkSize: 100, Overlap: 0}
	ctx := context.Background()

	for range 2 {
		report, err := svc.Ingest(ctx, []domain.RawDocument{textFile("report.txt", "alpha report")}, cfg)
		require.NoError(t, err)
		require.NoError(t, report.Err())
	}

	count, err := kb.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	sources, err := NewKnowledgeBaseService(kb.store, kb.index).ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "/uploads/report.txt", sources[0].URI)
}

func TestIngestService_DedupeByContent(t *testing.T) {
	kb := newTestKB()
	settings := domain.DefaultAppSettings().Ingest
	settings.DedupeByContent = true
	svc := newTestIngest(kb, settings)
	cfg := domain.ChunkingConfig{ChunkSize: 100, Overlap: 0}
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []domain.RawDocument{textFile("a.txt", "same bytes")}, cfg)
	require.NoError(t, err)

	report, err := svc.Ingest(ctx, []domain.RawDocument{textFile("b.txt", "same bytes")}, cfg)
	require.NoError(t, err)
	assert.True(t, report.Results[0].Duplicate)
	assert.NoError(t, report.Results[0].Err)
	assert.Zero(t, report.Succeeded())

	count, err := kb.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestIngestService_Replace(t *testing.T) {
	kb := newTestKB()
	svc := newTestIngest(kb, domain.DefaultAppSettings().Ingest)
	cfg := domain.ChunkingConfig{ChunkSize: 100, Overlap: 0}
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []domain.RawDocument{textFile("a.txt", "alpha old")}, cfg)
	require.NoError(t, err)

	res, err := svc.Replace(ctx, textFile("a.txt", "beta new"), cfg)
	require.NoError(t, err)

	docs, err := kb.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, res.DocumentID, docs[0].ID)
	assert.Equal(t, "beta new", docs[0].Content)
	assert.Equal(t, 1, kb.index.Len())
}

func TestIngestService_BatchesEmbeddings(t *testing.T) {
	kb := newTestKB()
	settings := domain.DefaultAppSettings().Ingest
	settings.EmbedBatchSize = 2
	svc := newTestIngest(kb, settings)

	report, err := svc.Ingest(context.Background(),
		[]domain.RawDocument{textFile("a.txt", strings.Repeat("x", 50))},
		domain.ChunkingConfig{ChunkSize: 10, Overlap: 0})
	require.NoError(t, err)
	assert.Equal(t, 5, report.Results[0].Chunks)
	assert.Equal(t, 3, kb.embedder.batchCalls)
}

func TestIngestService_ReportsProgress(t *testing.T) {
	kb := newTestKB()
	svc := newTestIngest(kb, domain.DefaultAppSettings().Ingest)

	var mu sync.Mutex
	var seen []int
	svc.SetProgress(func(done, total int, _ domain.FileResult) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		seen = append(seen, done)
	})

	files := []domain.RawDocument{textFile("a.txt", "a"), textFile("b.txt", "b"), textFile("c.txt", "c")}
	_, err := svc.Ingest(context.Background(), files, domain.ChunkingConfig{ChunkSize: 10, Overlap: 0})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
}

func TestIngestService_CancelledContext(t *testing.T) {
	kb := newTestKB()
	svc := newTestIngest(kb, domain.DefaultAppSettings().Ingest)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.Ingest(ctx, []domain.RawDocument{textFile("a.txt", "alpha")},
		domain.ChunkingConfig{ChunkSize: 10, Overlap: 0})
	require.NoError(t, err)
	assert.True(t, errors.Is(report.Results[0].Err, context.Canceled))
}

func TestIngestService_RequiresEmbedder(t *testing.T) {
	kb := newTestKB()
	svc := NewIngestService(kb.store, kb.index, nil, mockNormaliserRegistry{},
		postprocessors.NewDefaultRegistry(), domain.DefaultAppSettings().Ingest)

	_, err := svc.Ingest(context.Background(), nil, domain.ChunkingConfig{ChunkSize: 10})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}
