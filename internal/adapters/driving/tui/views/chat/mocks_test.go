package chat

import (
	"context"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// mockAnswer yields fixed fragments and stops early once closed.
type mockAnswer struct {
	fragments []string
	citations []domain.Citation
	streamErr error
	onEnd     func(a *mockAnswer)

	mu       sync.Mutex
	text     strings.Builder
	complete bool
	closed   atomic.Bool
	ended    sync.Once
}

func (a *mockAnswer) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer a.end()
		for _, f := range a.fragments {
			if a.closed.Load() {
				return
			}
			a.mu.Lock()
			a.text.WriteString(f)
			a.mu.Unlock()
			if !yield(f, nil) {
				return
			}
		}
		if a.closed.Load() {
			return
		}
		if a.streamErr != nil {
			yield("", a.streamErr)
			return
		}
		a.mu.Lock()
		a.complete = true
		a.mu.Unlock()
	}
}

func (a *mockAnswer) end() {
	a.ended.Do(func() {
		if a.onEnd != nil {
			a.onEnd(a)
		}
	})
}

func (a *mockAnswer) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.text.String()
}

func (a *mockAnswer) Citations() []domain.Citation  { return a.citations }
func (a *mockAnswer) Sources() []domain.ScoredChunk { return nil }
func (a *mockAnswer) State() domain.QueryState      { return domain.QueryStreaming }
func (a *mockAnswer) Err() error                    { return a.streamErr }

func (a *mockAnswer) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.complete
}

func (a *mockAnswer) Close() error {
	a.closed.Store(true)
	a.end()
	return nil
}

// mockSession records turns like a real session.
type mockSession struct {
	mu       sync.Mutex
	turns    []domain.Turn
	answer   *mockAnswer
	askErr   error
	clearErr error
	prompts  []string
	cleared  int
}

func newMockSession() *mockSession {
	return &mockSession{
		turns: []domain.Turn{{Role: domain.RoleAssistant, Content: "Hello, ask me about your documents."}},
	}
}

func (s *mockSession) ID() string { return "session-1" }

func (s *mockSession) Ask(_ context.Context, prompt string) (driving.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.askErr != nil {
		return nil, s.askErr
	}
	s.turns = append(s.turns, domain.Turn{Role: domain.RoleUser, Content: prompt})
	a := s.answer
	a.onEnd = func(a *mockAnswer) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.turns = append(s.turns, domain.Turn{
			Role:       domain.RoleAssistant,
			Content:    a.Text(),
			Citations:  a.citations,
			Incomplete: !a.Complete(),
		})
	}
	return a, nil
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

func (s *mockSession) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	s.cleared++
	s.turns = s.turns[:1]
	return nil
}

func (s *mockSession) Busy() bool { return false }

func warrantyAnswer() *mockAnswer {
	return &mockAnswer{
		fragments: []string{"The warranty ", "lasts two years."},
		citations: []domain.Citation{
			{DocumentID: "doc-1", Source: "manual.pdf", PageLabel: "4", Score: 0.87,
				Snippet: "The warranty lasts two years from the date of purchase."},
			{DocumentID: "doc-2", Source: "faq.md", PageLabel: domain.NotAvailable, Score: 0.41,
				Snippet: "Warranty claims need a receipt."},
		},
	}
}
