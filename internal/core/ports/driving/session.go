package driving

import (
	"context"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// SessionService manages chat session lifecycles.
type SessionService interface {
	// Create starts a session holding only the greeting turn.
	Create(ctx context.Context) (ChatSession, error)

	// Resume reopens a stored session, or creates it if nothing is stored.
	Resume(ctx context.Context, id string) (ChatSession, error)

	// Get returns a live session.
	Get(id string) (ChatSession, error)

	// End tears a session down. Stored turns are kept.
	End(id string) error
}

// ChatSession is the ordered turn log of one conversation.
type ChatSession interface {
	// ID returns the session identifier.
	ID() string

	// Ask runs a query and records the exchange. While the answer is still
	// streaming, further calls fail with domain.ErrQueryInProgress.
	Ask(ctx context.Context, prompt string) (Answer, error)

	// Append adds a turn at the end of the log.
	Append(ctx context.Context, turn domain.Turn) error

	// All returns the turns in insertion order.
	All() []domain.Turn

	// Clear resets the log to the greeting turn.
	Clear(ctx context.Context) error

	// Busy reports whether an answer is still streaming.
	Busy() bool
}
