package driving

import (
	"context"
	"iter"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// QueryService answers questions from the indexed documents.
type QueryService interface {
	// Query retrieves supporting chunks for prompt and returns an answer
	// whose text is generated lazily as it is consumed.
	// Returns domain.ErrEmptyPrompt for a blank prompt and
	// domain.ErrIndexNotReady when nothing is indexed.
	Query(ctx context.Context, prompt string) (Answer, error)
}

// Answer is a streamed reply with the sources it was built from.
type Answer interface {
	// Fragments yields the answer text piece by piece. It can be ranged over
	// once; a second range yields domain.ErrStreamConsumed. Stopping early
	// releases the model connection and marks the answer incomplete.
	Fragments() iter.Seq2[string, error]

	// Text returns the text consumed so far.
	Text() string

	// Citations returns the contributing sources.
	Citations() []domain.Citation

	// Sources returns the contributing chunks with their scores.
	Sources() []domain.ScoredChunk

	// State returns the current lifecycle state.
	State() domain.QueryState

	// Complete reports whether the full answer was consumed.
	Complete() bool

	// Err returns the failure that ended the stream, if any.
	Err() error

	// Close abandons the answer. It is safe to call more than once.
	Close() error
}
