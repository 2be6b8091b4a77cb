package tui

import (
	"context"
	"iter"
	"sync"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// mockAnswer streams fixed fragments.
type mockAnswer struct {
	fragments []string
	citations []domain.Citation
	onDone    func(text string)

	mu     sync.Mutex
	text   string
	closed bool
}

func (a *mockAnswer) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range a.fragments {
			a.mu.Lock()
			if a.closed {
				a.mu.Unlock()
				return
			}
			a.text += f
			a.mu.Unlock()
			if !yield(f, nil) {
				return
			}
		}
		if a.onDone != nil {
			a.onDone(a.Text())
		}
	}
}

func (a *mockAnswer) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text
}

func (a *mockAnswer) Citations() []domain.Citation  { return a.citations }
func (a *mockAnswer) Sources() []domain.ScoredChunk { return nil }
func (a *mockAnswer) State() domain.QueryState      { return domain.QueryStreaming }
func (a *mockAnswer) Complete() bool                { return false }
func (a *mockAnswer) Err() error                    { return nil }

func (a *mockAnswer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// mockSession implements driving.ChatSession.
type mockSession struct {
	mu     sync.Mutex
	turns  []domain.Turn
	answer *mockAnswer
}

func newMockSession() *mockSession {
	return &mockSession{turns: []domain.Turn{{Role: domain.RoleAssistant, Content: domain.DefaultGreeting}}}
}

func (s *mockSession) ID() string { return "session-1" }

func (s *mockSession) Ask(_ context.Context, prompt string) (driving.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answer == nil {
		return nil, domain.ErrIndexNotReady
	}
	s.turns = append(s.turns, domain.Turn{Role: domain.RoleUser, Content: prompt})
	s.answer.onDone = func(text string) {
		_ = s.Append(context.Background(), domain.Turn{Role: domain.RoleAssistant, Content: text})
	}
	return s.answer, nil
}

func (s *mockSession) Append(_ context.Context, turn domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return nil
}

func (s *mockSession) All() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Turn(nil), s.turns...)
}

func (s *mockSession) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = s.turns[:1]
	return nil
}

func (s *mockSession) Busy() bool { return false }

// mockKnowledgeBase implements driving.KnowledgeBaseService.
type mockKnowledgeBase struct {
	entries []domain.SourceEntry
	docs    map[string]*domain.Document
}

func (m *mockKnowledgeBase) ListSources(context.Context) ([]domain.SourceEntry, error) {
	return m.entries, nil
}

func (m *mockKnowledgeBase) Page(_ context.Context, page, size int) (domain.SourcePage, error) {
	return domain.Paginate(m.entries, page, size), nil
}

func (m *mockKnowledgeBase) Get(_ context.Context, id string) (*domain.Document, error) {
	if doc, ok := m.docs[id]; ok {
		return doc, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockKnowledgeBase) GetChunks(context.Context, string) ([]domain.Chunk, error) {
	return nil, nil
}

func (m *mockKnowledgeBase) DeleteDocument(context.Context, string) error { return nil }

func (m *mockKnowledgeBase) DeleteSource(context.Context, string) (int, error) { return 1, nil }

func (m *mockKnowledgeBase) DeleteByURI(context.Context, string) (int, error) { return 0, nil }

func (m *mockKnowledgeBase) Stats(context.Context) (driving.Stats, error) {
	return driving.Stats{}, nil
}

func (m *mockKnowledgeBase) Warm(context.Context) (int, error) { return 0, nil }
