package mcp

import (
	"context"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// fakeAnswer is a driving.Answer that yields fixed fragments.
type fakeAnswer struct {
	fragments []string
	citations []domain.Citation
	streamErr error
	text      strings.Builder
	done      bool
	closed    bool
}

func (a *fakeAnswer) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range a.fragments {
			a.text.WriteString(f)
			if !yield(f, nil) {
				return
			}
		}
		if a.streamErr != nil {
			yield("", a.streamErr)
			return
		}
		a.done = true
	}
}

func (a *fakeAnswer) Text() string                 { return a.text.String() }
func (a *fakeAnswer) Citations() []domain.Citation { return a.citations }
func (a *fakeAnswer) Sources() []domain.ScoredChunk {
	return nil
}
func (a *fakeAnswer) State() domain.QueryState { return domain.QueryDone }
func (a *fakeAnswer) Complete() bool           { return a.done }
func (a *fakeAnswer) Err() error               { return a.streamErr }
func (a *fakeAnswer) Close() error {
	a.closed = true
	return nil
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	answer *fakeAnswer
	err    error
	prompt string
}

func (m *mockQueryService) Query(_ context.Context, prompt string) (driving.Answer, error) {
	m.prompt = prompt
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

// mockKnowledgeBase is a mock implementation of driving.KnowledgeBaseService.
type mockKnowledgeBase struct {
	sources  []domain.SourceEntry
	page     domain.SourcePage
	document *domain.Document
	removed  int
	err      error

	pageArgs  [2]int
	deletedID string
}

func (m *mockKnowledgeBase) ListSources(_ context.Context) ([]domain.SourceEntry, error) {
	return m.sources, m.err
}

func (m *mockKnowledgeBase) Page(_ context.Context, page, size int) (domain.SourcePage, error) {
	m.pageArgs = [2]int{page, size}
	return m.page, m.err
}

func (m *mockKnowledgeBase) Get(_ context.Context, _ string) (*domain.Document, error) {
	return m.document, m.err
}

func (m *mockKnowledgeBase) GetChunks(_ context.Context, _ string) ([]domain.Chunk, error) {
	return nil, m.err
}

func (m *mockKnowledgeBase) DeleteDocument(_ context.Context, _ string) error {
	return m.err
}

func (m *mockKnowledgeBase) DeleteSource(_ context.Context, documentID string) (int, error) {
	m.deletedID = documentID
	return m.removed, m.err
}

func (m *mockKnowledgeBase) DeleteByURI(_ context.Context, _ string) (int, error) {
	return m.removed, m.err
}

func (m *mockKnowledgeBase) Stats(_ context.Context) (driving.Stats, error) {
	return driving.Stats{}, m.err
}

func (m *mockKnowledgeBase) Warm(_ context.Context) (int, error) {
	return 0, m.err
}

func newTestServer(t *testing.T, q *mockQueryService, kb *mockKnowledgeBase) *Server {
	t.Helper()
	if q == nil {
		q = &mockQueryService{}
	}
	if kb == nil {
		kb = &mockKnowledgeBase{}
	}
	server, err := NewServer(&Ports{Query: q, KnowledgeBase: kb})
	require.NoError(t, err)
	return server
}
