package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService normalises, chunks, embeds and indexes files.
type IngestService struct {
	docStore         driven.DocumentStore
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	registry         driven.NormaliserRegistry
	pipelines        driven.PipelineBuilder
	settings         domain.IngestSettings
	limiter          *rate.Limiter
	progress         driving.ProgressFunc

	// dedupe serialises the content check with the store write.
	dedupe sync.Mutex
}

// NewIngestService creates a new ingestion service.
func NewIngestService(
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
	registry driven.NormaliserRegistry,
	pipelines driven.PipelineBuilder,
	settings domain.IngestSettings,
) *IngestService {
	s := &IngestService{
		docStore:         docStore,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		registry:         registry,
		pipelines:        pipelines,
		settings:         settings,
	}
	if settings.EmbedRatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(settings.EmbedRatePerSecond), 1)
	}
	return s
}

// SetProgress sets a callback invoked after each file.
func (s *IngestService) SetProgress(fn driving.ProgressFunc) {
	s.progress = fn
}

// Ingest processes files with bounded concurrency.
// Per-file failures are recorded in the report and never stop siblings.
func (s *IngestService) Ingest(
	ctx context.Context, files []domain.RawDocument, cfg domain.ChunkingConfig,
) (*domain.IngestReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	pipeline, err := s.pipelines.BuildPipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	logger.Section("Ingest")
	logger.Debug("Files: %d, chunk_size=%d, overlap=%d", len(files), cfg.ChunkSize, cfg.Overlap)

	start := time.Now()
	report := &domain.IngestReport{Results: make([]domain.FileResult, len(files))}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		done    int
		workers = make(chan struct{}, max(s.settings.Concurrency, 1))
	)
	for i := range files {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case workers <- struct{}{}:
				defer func() { <-workers }()
				report.Results[i] = s.ingestOne(ctx, pipeline, &files[i])
			case <-ctx.Done():
				report.Results[i] = resultFor(&files[i])
				report.Results[i].Err = ctx.Err()
			}

			// Progress callbacks are serialised.
			mu.Lock()
			done++
			if s.progress != nil {
				s.progress(done, len(files), report.Results[i])
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	report.Duration = time.Since(start)
	logger.Info("Ingested %d of %d files in %s", report.Succeeded(), len(files), report.Duration)
	return report, nil
}

// Replace removes every document with the file's URI and ingests it again.
func (s *IngestService) Replace(
	ctx context.Context, file domain.RawDocument, cfg domain.ChunkingConfig,
) (domain.FileResult, error) {
	if err := cfg.Validate(); err != nil {
		return domain.FileResult{}, err
	}
	if file.URI != "" {
		if _, err := deleteByURI(ctx, s.docStore, s.vectorIndex, file.URI); err != nil {
			return domain.FileResult{}, fmt.Errorf("remove previous %s: %w", file.URI, err)
		}
	}
	report, err := s.Ingest(ctx, []domain.RawDocument{file}, cfg)
	if err != nil {
		return domain.FileResult{}, err
	}
	return report.Results[0], report.Results[0].Err
}

// ingestOne runs one file through the pipeline.
//
//nolint:gocyclo // Pipeline orchestration with sequential steps
func (s *IngestService) ingestOne(
	ctx context.Context, pipeline driven.PostProcessorPipeline, raw *domain.RawDocument,
) domain.FileResult {
	result := resultFor(raw)
	fail := func(format string, err error) domain.FileResult {
		result.Err = fmt.Errorf(format, err)
		logger.Warn("Ingest %s: %v", result.Name, result.Err)
		return result
	}

	if err := ctx.Err(); err != nil {
		return fail("cancelled: %w", err)
	}
	if raw.Kind != "" && !raw.Kind.IsValid() {
		return fail("source kind: %w", fmt.Errorf("%w: %q", domain.ErrInvalidInput, raw.Kind))
	}
	if s.settings.MaxFileSize > 0 && result.Size > s.settings.MaxFileSize {
		return fail("size: %w", fmt.Errorf("%w: %d bytes exceeds limit of %d",
			domain.ErrInvalidInput, result.Size, s.settings.MaxFileSize))
	}

	// 1. NORMALISE
	normalised, err := s.registry.Normalise(ctx, raw)
	if err != nil {
		return fail("normalise: %w", err)
	}
	doc := s.prepare(&normalised.Document, raw)
	result.DocumentID = doc.ID
	result.Type = doc.FileType

	// 2. CHUNK AND ANNOTATE
	chunks, err := pipeline.Process(ctx, doc)
	if err != nil {
		return fail("chunk: %w", err)
	}

	// 3. EMBED
	if err := s.embed(ctx, chunks); err != nil {
		return fail("embed: %w", err)
	}

	// 4. STORE
	if s.settings.DedupeByContent {
		s.dedupe.Lock()
		dup, err := s.hasContent(ctx, doc.Metadata[domain.MetaContentHash])
		if err != nil {
			s.dedupe.Unlock()
			return fail("dedupe: %w", err)
		}
		if dup {
			s.dedupe.Unlock()
			result.Duplicate = true
			result.DocumentID = ""
			logger.Info("Skipped %s: content already stored", result.Name)
			return result
		}
		err = s.docStore.Add(ctx, doc, chunks)
		s.dedupe.Unlock()
		if err != nil {
			return fail("store: %w", err)
		}
	} else if err := s.docStore.Add(ctx, doc, chunks); err != nil {
		return fail("store: %w", err)
	}

	// 5. INDEX
	for i := range chunks {
		entry := driven.IndexEntry{Chunk: chunks[i], Vector: chunks[i].Embedding}
		if err := s.vectorIndex.Insert(ctx, entry); err != nil {
			s.rollback(doc.ID)
			return fail("index: %w", err)
		}
	}

	result.Chunks = len(chunks)
	logger.Debug("Ingested %s as %s: %d chunks", result.Name, doc.ID, len(chunks))
	return result
}

// prepare fills in identity and file metadata on a normalised document.
func (s *IngestService) prepare(doc *domain.Document, raw *domain.RawDocument) *domain.Document {
	out := *doc
	out.ID = uuid.New().String()
	out.URI = raw.URI
	out.Kind = raw.Kind
	if out.Kind == "" {
		out.Kind = domain.SourceKindFile
	}
	out.FileType = fileType(raw)
	now := time.Now()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	out.UpdatedAt = now

	out.Metadata = maps.Clone(doc.Metadata)
	if out.Metadata == nil {
		out.Metadata = make(map[string]any)
	}
	sum := sha256.Sum256(raw.Content)
	out.Metadata[domain.MetaContentHash] = hex.EncodeToString(sum[:])
	out.Metadata[domain.MetaSize] = int64(len(raw.Content))
	if raw.MIMEType != "" {
		out.Metadata[domain.MetaMIMEType] = raw.MIMEType
	}
	if out.Kind == domain.SourceKindFile {
		out.Metadata[domain.MetaFileName] = fileName(raw)
	}
	return &out
}

// embed fills chunk embeddings in batches.
func (s *IngestService) embed(ctx context.Context, chunks []domain.Chunk) error {
	batch := s.settings.EmbedBatchSize
	if batch <= 0 {
		batch = len(chunks)
	}
	for start := 0; start < len(chunks); start += batch {
		end := min(start+batch, len(chunks))
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		texts := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			texts = append(texts, chunks[i].Content)
		}
		vectors, err := s.embeddingService.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrProviderError, len(vectors), len(texts))
		}
		for i, v := range vectors {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

func (s *IngestService) hasContent(ctx context.Context, hash any) (bool, error) {
	docs, err := s.docStore.List(ctx)
	if err != nil {
		return false, err
	}
	for i := range docs {
		if docs[i].Metadata[domain.MetaContentHash] == hash {
			return true, nil
		}
	}
	return false, nil
}

// rollback removes a document whose index entries could not all be inserted.
func (s *IngestService) rollback(documentID string) {
	ctx := context.Background()
	if _, err := s.vectorIndex.DeleteByDocument(ctx, documentID); err != nil {
		logger.Warn("Rollback index entries of %s: %v", documentID, err)
	}
	if err := s.docStore.Delete(ctx, documentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Rollback document %s: %v", documentID, err)
	}
}

func resultFor(raw *domain.RawDocument) domain.FileResult {
	size := raw.Size
	if size == 0 {
		size = int64(len(raw.Content))
	}
	return domain.FileResult{
		Name: fileName(raw),
		Type: fileType(raw),
		Size: size,
		URI:  raw.URI,
	}
}

func fileName(raw *domain.RawDocument) string {
	if raw.Name != "" {
		return raw.Name
	}
	if raw.Kind == domain.SourceKindURL || raw.URI == "" {
		return raw.URI
	}
	return filepath.Base(raw.URI)
}

func fileType(raw *domain.RawDocument) string {
	if raw.Kind == domain.SourceKindURL {
		return domain.FileTypeFor(raw.Kind, raw.URI)
	}
	if t := domain.FileTypeFor(domain.SourceKindFile, raw.URI); t != "" {
		return t
	}
	return domain.FileTypeFor(domain.SourceKindFile, raw.Name)
}
