package driven

import (
	"context"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// ChatStore persists chat turns per session.
type ChatStore interface {
	// AppendTurn stores a turn at the end of a session.
	AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) error

	// Turns returns a session's turns in position order.
	Turns(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// ClearTurns removes every turn of a session.
	ClearTurns(ctx context.Context, sessionID string) error

	// Sessions returns the ids of sessions with stored turns.
	Sessions(ctx context.Context) ([]string, error)
}
