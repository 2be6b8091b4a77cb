package domain

import (
	"math"
	"strings"
	"unicode/utf8"
)

// QueryState is the lifecycle stage of a single query.
type QueryState string

// Query lifecycle states.
const (
	QueryIdle       QueryState = "idle"
	QueryEmbedding  QueryState = "embedding"
	QueryRetrieving QueryState = "retrieving"
	QueryReranking  QueryState = "reranking"
	QueryGenerating QueryState = "generating"
	QueryStreaming  QueryState = "streaming"
	QueryDone       QueryState = "done"
	QueryFailed     QueryState = "failed"
)

// IsTerminal returns true for Done and Failed.
func (s QueryState) IsTerminal() bool {
	return s == QueryDone || s == QueryFailed
}

// String returns the string representation.
func (s QueryState) String() string {
	return string(s)
}

// CanTransition reports whether a query may move from s to next.
// Failed is reachable from any non-terminal state.
func (s QueryState) CanTransition(next QueryState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == QueryFailed {
		return true
	}
	switch s {
	case QueryIdle:
		return next == QueryEmbedding
	case QueryEmbedding:
		return next == QueryRetrieving
	case QueryRetrieving:
		return next == QueryReranking || next == QueryGenerating
	case QueryReranking:
		return next == QueryGenerating
	case QueryGenerating:
		return next == QueryStreaming || next == QueryDone
	case QueryStreaming:
		return next == QueryDone
	default:
		return false
	}
}

// ScoredChunk is a retrieved chunk with its relevance score.
// A sequence of them is the ephemeral retrieval result of a query.
type ScoredChunk struct {
	// Chunk is the retrieved chunk.
	Chunk Chunk

	// Score is the relevance score; cosine similarity or reranker score.
	Score float64
}

// NotAvailable is shown when a citation has no page label.
const NotAvailable = "N/A"

// PreviewLength is the rune length of a citation preview.
const PreviewLength = 50

// Citation is a source passage attached to an answer.
type Citation struct {
	// DocumentID is the document the passage belongs to.
	DocumentID string

	// ChunkID is the passage identifier.
	ChunkID string

	// Source is the file name, or the title when there is no file.
	Source string

	// URI is the source path or URL.
	URI string

	// PageLabel is the page or section label, or "N/A".
	PageLabel string

	// Snippet is the passage text with normalised line breaks.
	Snippet string

	// Score is the relevance score clamped to [0,1].
	Score float64
}

// NewCitation builds a citation from a scored chunk.
func NewCitation(sc ScoredChunk) Citation {
	c := sc.Chunk
	source := c.MetaString(MetaFileName)
	if source == "" {
		source = c.MetaString(MetaTitle)
	}
	if source == "" {
		source = c.MetaString(MetaURI)
	}
	page := c.MetaString(MetaPageLabel)
	if page == "" {
		page = NotAvailable
	}
	return Citation{
		DocumentID: c.DocumentID,
		ChunkID:    c.ID,
		Source:     source,
		URI:        c.MetaString(MetaURI),
		PageLabel:  page,
		Snippet:    NormaliseSnippet(c.Content),
		Score:      ClampScore(sc.Score),
	}
}

// Preview returns the first PreviewLength runes of the snippet,
// followed by "..." when truncated.
func (c Citation) Preview() string {
	return Truncate(c.Snippet, PreviewLength)
}

// ClampScore maps a score into [0,1].
func ClampScore(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return 0
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

var snippetReplacer = strings.NewReplacer(
	"\n\n", "\n\n",
	"\n", " ",
	"\u2028", "\n\n",
)

// NormaliseSnippet keeps paragraph breaks, joins wrapped lines with a
// space and turns a line separator into a paragraph break.
func NormaliseSnippet(s string) string {
	return snippetReplacer.Replace(s)
}

// Truncate shortens s to n runes, appending "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
