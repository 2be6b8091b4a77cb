package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure ChatStore implements the interface.
var _ driven.ChatStore = (*ChatStore)(nil)

// ChatStore is an in-memory implementation of driven.ChatStore.
type ChatStore struct {
	mu       sync.RWMutex
	sessions []string
	turns    map[string][]domain.Turn
}

// NewChatStore creates a new in-memory chat store.
func NewChatStore() *ChatStore {
	return &ChatStore{
		turns: make(map[string][]domain.Turn),
	}
}

// AppendTurn stores a turn at the end of a session.
func (s *ChatStore) AppendTurn(_ context.Context, sessionID string, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.turns[sessionID]; !ok {
		s.sessions = append(s.sessions, sessionID)
	}
	turn.Citations = slices.Clone(turn.Citations)
	s.turns[sessionID] = append(s.turns[sessionID], turn)
	return nil
}

// Turns returns a session's turns in position order.
func (s *ChatStore) Turns(_ context.Context, sessionID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := slices.Clone(s.turns[sessionID])
	slices.SortStableFunc(turns, func(a, b domain.Turn) int { return a.Position - b.Position })
	return turns, nil
}

// ClearTurns removes every turn of a session.
func (s *ChatStore) ClearTurns(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, sessionID)
	s.sessions = slices.DeleteFunc(s.sessions, func(id string) bool { return id == sessionID })
	return nil
}

// Sessions returns the ids of sessions with stored turns, oldest first.
func (s *ChatStore) Sessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.sessions), nil
}
