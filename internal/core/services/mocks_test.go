package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driven/storage/memory"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driven/vector/flat"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// keywords is the vocabulary of mockEmbeddingService.
var keywords = []string{"alpha", "beta", "gamma", "delta"}

// mockEmbeddingService embeds text as keyword counts.
type mockEmbeddingService struct {
	mu         sync.Mutex
	calls      int
	batchCalls int
	err        error
	failOn     string
}

func (m *mockEmbeddingService) vector(text string) []float32 {
	words := strings.Fields(strings.ToLower(text))
	v := make([]float32, len(keywords))
	for _, w := range words {
		for i, k := range keywords {
			if strings.Trim(w, ".,?!") == k {
				v[i]++
			}
		}
	}
	return v
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.failOn != "" && strings.Contains(t, m.failOn) {
			return nil, errors.New("embedding backend rejected input")
		}
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int              { return len(keywords) }
func (m *mockEmbeddingService) ModelName() string            { return "mock-embed" }
func (m *mockEmbeddingService) Ping(_ context.Context) error { return nil }
func (m *mockEmbeddingService) Close() error                 { return nil }

func (m *mockEmbeddingService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls + m.batchCalls
}

// mockLLMService records prompts and streams canned tokens.
type mockLLMService struct {
	mu          sync.Mutex
	chatReply   string
	chatErr     error
	streamErr   error
	tokens      []string
	recvErr     error // returned once tokens run out, instead of io.EOF
	chatCalls   int
	streamCalls int
	prompts     []string
	streams     []*mockTokenStream
}

func (m *mockLLMService) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.chatReply, m.chatErr
}

func (m *mockLLMService) Chat(_ context.Context, msgs []driven.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatCalls++
	m.prompts = append(m.prompts, msgs[len(msgs)-1].Content)
	return m.chatReply, m.chatErr
}

func (m *mockLLMService) Stream(_ context.Context, msgs []driven.ChatMessage, _ driven.ChatOptions) (driven.TokenStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamCalls++
	m.prompts = append(m.prompts, msgs[len(msgs)-1].Content)
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	s := &mockTokenStream{tokens: append([]string(nil), m.tokens...), err: m.recvErr}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *mockLLMService) ModelName() string            { return "mock-llm" }
func (m *mockLLMService) Ping(_ context.Context) error { return nil }
func (m *mockLLMService) Close() error                 { return nil }

func (m *mockLLMService) Calls() (chat, stream int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chatCalls, m.streamCalls
}

func (m *mockLLMService) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

type mockTokenStream struct {
	mu     sync.Mutex
	tokens []string
	err    error
	closed bool
}

func (s *mockTokenStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.New("stream closed")
	}
	if len(s.tokens) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	return tok, nil
}

func (s *mockTokenStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockTokenStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// mockReranker reverses the candidates and keeps topN.
type mockReranker struct {
	calls int
	topN  int
	err   error
}

func (m *mockReranker) Rerank(_ context.Context, _ string, c []domain.ScoredChunk, topN int) ([]domain.ScoredChunk, error) {
	m.calls++
	m.topN = topN
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.ScoredChunk, 0, len(c))
	for i := len(c) - 1; i >= 0; i-- {
		sc := c[i]
		sc.Score = 0.9
		out = append(out, sc)
	}
	return out[:min(topN, len(out))], nil
}

func (m *mockReranker) ModelName() string { return "mock-rerank" }

// mockNormaliserRegistry turns bytes into text, failing for the MIME type "application/broken".
type mockNormaliserRegistry struct{}

func (mockNormaliserRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw.MIMEType == "application/broken" {
		return nil, domain.ErrUnsupportedType
	}
	return &driven.NormaliseResult{Document: domain.Document{
		Title:   raw.Name,
		Content: string(raw.Content),
	}}, nil
}

func (mockNormaliserRegistry) Register(_ driven.Normaliser) {}
func (mockNormaliserRegistry) SupportedMIMETypes() []string { return []string{"text/plain"} }

// testKB is a populated knowledge base for service tests.
type testKB struct {
	store    *memory.DocumentStore
	index    *flat.Index
	embedder *mockEmbeddingService
}

func newTestKB() *testKB {
	return &testKB{
		store:    memory.NewDocumentStore(),
		index:    flat.New(),
		embedder: &mockEmbeddingService{},
	}
}

// add stores a document with one chunk per text and indexes them.
func (kb *testKB) add(t *testing.T, id, uri string, texts ...string) {
	t.Helper()
	ctx := context.Background()
	doc := &domain.Document{
		ID:       id,
		URI:      uri,
		Kind:     domain.SourceKindFile,
		FileType: domain.FileTypeFor(domain.SourceKindFile, uri),
		Content:  strings.Join(texts, ""),
	}
	chunks := make([]domain.Chunk, len(texts))
	offset := 0
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:         id + "-" + string(rune('a'+i)),
			DocumentID: id,
			Content:    text,
			Position:   i,
			Start:      offset,
			End:        offset + len([]rune(text)),
			Embedding:  kb.embedder.vector(text),
			Metadata:   map[string]any{domain.MetaFileName: uri},
		}
		offset += len([]rune(text))
	}
	require.NoError(t, kb.store.Add(ctx, doc, chunks))
	for i := range chunks {
		require.NoError(t, kb.index.Insert(ctx, driven.IndexEntry{Chunk: chunks[i], Vector: chunks[i].Embedding}))
	}
}

// failingDeleteStore fails Delete for one document.
type failingDeleteStore struct {
	driven.DocumentStore
	failID string
}

func (s *failingDeleteStore) Delete(ctx context.Context, id string) error {
	if id == s.failID {
		return errors.New("database is locked")
	}
	return s.DocumentStore.Delete(ctx, id)
}

func defaultQuerySettings() domain.QuerySettings {
	return domain.DefaultAppSettings().Query
}

// collect drains an answer, returning the fragments and the first error.
func collect(ans driving.Answer) ([]string, error) {
	var out []string
	for f, err := range ans.Fragments() {
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
	return out, nil
}
