package rerank

import (
	"context"
	"strings"
	"unicode"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure LexicalScorer implements the interface.
var _ driven.RelevanceScorer = (*LexicalScorer)(nil)

// LexicalScorer scores a passage by the share of distinct query terms it contains.
// It needs no model and is deterministic.
type LexicalScorer struct{}

// NewLexicalScorer creates a lexical overlap scorer.
func NewLexicalScorer() *LexicalScorer {
	return &LexicalScorer{}
}

// ScorePairs returns one score in [0,1] per passage.
func (s *LexicalScorer) ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := termSet(query)
	scores := make([]float64, len(passages))
	if len(terms) == 0 {
		return scores, nil
	}
	for i, p := range passages {
		found := 0
		for term := range termSet(p) {
			if _, ok := terms[term]; ok {
				found++
			}
		}
		scores[i] = float64(found) / float64(len(terms))
	}
	return scores, nil
}

// termSet lower-cases text and splits it on anything that is not a letter or digit.
func termSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
