package rerank

import (
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// New resolves reranker settings into a reranker, or nil for none.
// A base URL selects the HTTP scorer; the model id "lexical" or a missing
// LLM selects the lexical scorer; otherwise the LLM scores pairs.
func New(settings domain.RerankerSettings, llm driven.LLMService, prompts driven.PromptStore) driven.Reranker {
	variant := settings.Resolve()
	if !variant.Enabled() {
		return nil
	}

	var scorer driven.RelevanceScorer
	switch {
	case settings.BaseURL != "":
		scorer = NewHTTPScorer(settings.BaseURL, variant.Model, 0)
	case variant.Model == domain.LexicalRerankerModel || llm == nil:
		scorer = NewLexicalScorer()
	default:
		s := NewLLMScorer(llm)
		s.SetPromptStore(prompts)
		scorer = s
	}
	return NewCrossEncoder(variant.Model, scorer)
}
