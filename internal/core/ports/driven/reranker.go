package driven

import (
	"context"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// Reranker reorders retrieval candidates by a secondary relevance model.
type Reranker interface {
	// Rerank scores candidates against the query and returns the best topN,
	// highest first. topN larger than len(candidates) is clamped.
	// Returns domain.ErrInvalidConfig if topN <= 0.
	Rerank(ctx context.Context, query string, candidates []domain.ScoredChunk, topN int) ([]domain.ScoredChunk, error)

	// ModelName returns the reranking model id.
	ModelName() string
}

// RelevanceScorer scores (query, passage) pairs jointly.
// Scores are in [0,1], one per passage, in input order.
type RelevanceScorer interface {
	ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error)
}
