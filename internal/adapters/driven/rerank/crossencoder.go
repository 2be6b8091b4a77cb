// Package rerank provides second stage rerankers for retrieved chunks.
package rerank

import (
	"context"
	"fmt"
	"slices"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure CrossEncoder implements the interface.
var _ driven.Reranker = (*CrossEncoder)(nil)

// CrossEncoder reranks candidates by scoring each (query, passage) pair jointly.
type CrossEncoder struct {
	model  string
	scorer driven.RelevanceScorer
}

// NewCrossEncoder creates a cross-encoder reranker over a pair scorer.
func NewCrossEncoder(model string, scorer driven.RelevanceScorer) *CrossEncoder {
	return &CrossEncoder{model: model, scorer: scorer}
}

// ModelName returns the cross-encoder model id.
func (c *CrossEncoder) ModelName() string {
	return c.model
}

// Rerank orders candidates by descending pair score and keeps topN.
// Scores are clamped into [0,1]; equal scores keep retrieval order.
func (c *CrossEncoder) Rerank(
	ctx context.Context, query string, candidates []domain.ScoredChunk, topN int,
) ([]domain.ScoredChunk, error) {
	if topN <= 0 {
		return nil, fmt.Errorf("%w: top_n must be positive, got %d", domain.ErrInvalidConfig, topN)
	}
	if len(candidates) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	passages := make([]string, len(candidates))
	for i := range candidates {
		passages[i] = candidates[i].Chunk.Content
	}
	scores, err := c.scorer.ScorePairs(ctx, query, passages)
	if err != nil {
		return nil, fmt.Errorf("score pairs: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("%w: got %d scores for %d passages",
			domain.ErrProviderError, len(scores), len(candidates))
	}

	out := make([]domain.ScoredChunk, len(candidates))
	for i := range candidates {
		out[i] = domain.ScoredChunk{Chunk: candidates[i].Chunk, Score: domain.ClampScore(scores[i])}
	}
	slices.SortStableFunc(out, func(a, b domain.ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	return out[:min(topN, len(out))], nil
}
