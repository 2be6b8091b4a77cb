package rerank

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure LLMScorer implements the interface.
var _ driven.RelevanceScorer = (*LLMScorer)(nil)

// Ensure LLMScorer can receive custom prompts.
var _ driven.PromptStoreAware = (*LLMScorer)(nil)

// LLMScorer asks a language model to rate each passage from 0 to 10.
type LLMScorer struct {
	llm     driven.LLMService
	prompts driven.PromptStore
}

// NewLLMScorer creates a scorer backed by an LLM.
func NewLLMScorer(llm driven.LLMService) *LLMScorer {
	return &LLMScorer{llm: llm}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
func (s *LLMScorer) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// ScorePairs rates every passage. A reply without a number scores 0.
func (s *LLMScorer) ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error) {
	template := driven.DefaultPrompts()[driven.PromptRerank]
	if s.prompts != nil {
		if t, err := s.prompts.Load(driven.PromptRerank); err == nil && t != "" {
			template = t
		}
	}

	scores := make([]float64, len(passages))
	for i, p := range passages {
		reply, err := s.llm.Generate(ctx, fmt.Sprintf(template, query, p), driven.GenerateOptions{
			MaxTokens:   8,
			Temperature: 0,
		})
		if err != nil {
			return nil, fmt.Errorf("score passage %d: %w", i, err)
		}
		scores[i] = parseScore(reply) / 10
	}
	return scores, nil
}

// parseScore reads the first number in reply and clamps it to 0..10.
func parseScore(reply string) float64 {
	fields := strings.FieldsFunc(reply, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.Trim(f, "."), 64)
		if err != nil {
			continue
		}
		return min(max(v, 0), 10)
	}
	return 0
}
