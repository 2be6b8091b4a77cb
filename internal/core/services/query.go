package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
)

// Ensure QueryEngine implements the interface.
var _ driving.QueryService = (*QueryEngine)(nil)

// Ensure QueryEngine can receive custom prompts.
var _ driven.PromptStoreAware = (*QueryEngine)(nil)

// QueryEngine answers questions by retrieval-augmented generation.
// Embedding, retrieval and reranking run inside Query; generation runs
// lazily while the caller consumes the answer.
type QueryEngine struct {
	docStore         driven.DocumentStore
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
	reranker         driven.Reranker
	prompts          driven.PromptStore
	settings         domain.QuerySettings
}

// NewQueryEngine creates a query engine.
// The reranker is set separately with SetReranker.
func NewQueryEngine(
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
	llmService driven.LLMService,
	settings domain.QuerySettings,
) *QueryEngine {
	return &QueryEngine{
		docStore:         docStore,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		llmService:       llmService,
		settings:         settings,
	}
}

// SetReranker sets the second stage ranker. A nil reranker disables reranking.
func (e *QueryEngine) SetReranker(r driven.Reranker) {
	e.reranker = r
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (e *QueryEngine) SetPromptStore(store driven.PromptStore) {
	e.prompts = store
}

// Settings returns the query parameters in use.
func (e *QueryEngine) Settings() domain.QuerySettings {
	return e.settings
}

// Query retrieves the chunks relevant to prompt and returns a lazily generated answer.
func (e *QueryEngine) Query(ctx context.Context, prompt string) (driving.Answer, error) {
	logger.Section("Query")

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, domain.ErrEmptyPrompt
	}
	if err := e.settings.Validate(); err != nil {
		return nil, err
	}
	if err := e.ready(ctx); err != nil {
		return nil, err
	}
	if e.embeddingService == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if e.llmService == nil {
		return nil, domain.ErrLLMUnavailable
	}
	logger.Debug("Prompt: %q", prompt)

	a := newAnswer(ctx)

	a.setState(domain.QueryEmbedding)
	done := logger.Stage("Embedding")
	vector, err := e.embeddingService.Embed(ctx, prompt)
	done()
	if err != nil {
		return nil, a.fail(fmt.Errorf("embed prompt: %w", err))
	}

	a.setState(domain.QueryRetrieving)
	done = logger.Stage("Retrieving")
	hits, err := e.vectorIndex.Search(ctx, vector, e.settings.TopK)
	done()
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	sources := make([]domain.ScoredChunk, len(hits))
	for i, h := range hits {
		sources[i] = domain.ScoredChunk{Chunk: h.Chunk, Score: domain.ClampScore(h.Similarity)}
	}
	logger.Debug("Retrieved %d of top_k=%d", len(sources), e.settings.TopK)

	if e.reranking() {
		a.setState(domain.QueryReranking)
		done = logger.Stage("Reranking")
		sources, err = e.reranker.Rerank(ctx, prompt, sources, e.settings.TopN)
		done()
		if err != nil {
			return nil, a.fail(fmt.Errorf("rerank: %w", err))
		}
		logger.Debug("Reranked with %s to top_n=%d", e.reranker.ModelName(), len(sources))
	}

	a.sources = sources
	a.citations = make([]domain.Citation, len(sources))
	for i := range sources {
		a.citations[i] = domain.NewCitation(sources[i])
	}

	synth := &synthesizer{
		llm:         e.llmService,
		prompts:     e.prompts,
		mode:        e.settings.ResponseMode,
		window:      e.settings.ContextWindow,
		temperature: e.settings.Temperature,
	}
	a.open = func(ctx context.Context) (driven.TokenStream, error) {
		return synth.open(ctx, prompt, sources)
	}
	a.setState(domain.QueryGenerating)
	return a, nil
}

// ready returns domain.ErrIndexNotReady when nothing can be retrieved.
func (e *QueryEngine) ready(ctx context.Context) error {
	if e.docStore == nil || e.vectorIndex == nil {
		return domain.ErrIndexNotReady
	}
	count, err := e.docStore.Count(ctx)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if count == 0 || e.vectorIndex.Len() == 0 {
		logger.Debug("Index not ready: %d documents, %d vectors", count, e.vectorIndex.Len())
		return domain.ErrIndexNotReady
	}
	return nil
}

func (e *QueryEngine) reranking() bool {
	return e.reranker != nil && e.settings.Reranker.Resolve().Enabled()
}
