package cli

import (
	"context"
	"iter"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// stubAnswer yields fixed fragments.
type stubAnswer struct {
	fragments []string
	citations []domain.Citation
	err       error
	text      strings.Builder
	complete  bool
}

func (a *stubAnswer) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, f := range a.fragments {
			a.text.WriteString(f)
			if !yield(f, nil) {
				return
			}
		}
		if a.err != nil {
			yield("", a.err)
			return
		}
		a.complete = true
	}
}

func (a *stubAnswer) Text() string                  { return a.text.String() }
func (a *stubAnswer) Citations() []domain.Citation  { return a.citations }
func (a *stubAnswer) Sources() []domain.ScoredChunk { return nil }
func (a *stubAnswer) State() domain.QueryState      { return domain.QueryDone }
func (a *stubAnswer) Complete() bool                { return a.complete }
func (a *stubAnswer) Err() error                    { return a.err }
func (a *stubAnswer) Close() error                  { return nil }

func newStubAnswer() *stubAnswer {
	return &stubAnswer{
		fragments: []string{"The warranty ", "lasts two years."},
		citations: []domain.Citation{{
			DocumentID: "doc-1",
			ChunkID:    "chunk-1",
			Source:     "manual.pdf",
			URI:        "/docs/manual.pdf",
			PageLabel:  "4",
			Snippet:    "The warranty lasts two years from the date of purchase.",
			Score:      0.87,
		}},
	}
}

// mockQueryService answers every prompt with a stub answer.
type mockQueryService struct {
	err     error
	prompts []string
	answer  *stubAnswer
}

func (m *mockQueryService) Query(_ context.Context, prompt string) (driving.Answer, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return nil, m.err
	}
	if m.answer != nil {
		return m.answer, nil
	}
	return newStubAnswer(), nil
}

// mockSession records turns in memory.
type mockSession struct {
	id     string
	turns  []domain.Turn
	askErr error
}

func newMockSession(id string) *mockSession {
	return &mockSession{id: id, turns: []domain.Turn{{Role: domain.RoleAssistant, Content: domain.DefaultGreeting}}}
}

func (s *mockSession) ID() string { return s.id }

func (s *mockSession) Ask(_ context.Context, prompt string) (driving.Answer, error) {
	if s.askErr != nil {
		return nil, s.askErr
	}
	s.turns = append(s.turns, domain.Turn{Role: domain.RoleUser, Content: prompt, Position: len(s.turns)})
	return newStubAnswer(), nil
}

func (s *mockSession) Append(_ context.Context, turn domain.Turn) error {
	s.turns = append(s.turns, turn)
	return nil
}

func (s *mockSession) All() []domain.Turn { return append([]domain.Turn(nil), s.turns...) }

func (s *mockSession) Clear(_ context.Context) error {
	s.turns = s.turns[:1]
	return nil
}

func (s *mockSession) Busy() bool { return false }

// mockSessionService hands out mock sessions.
type mockSessionService struct {
	sessions map[string]*mockSession
	ended    []string
	stored   []string
}

func (m *mockSessionService) Create(_ context.Context) (driving.ChatSession, error) {
	s := newMockSession("session-new")
	m.sessions[s.id] = s
	return s, nil
}

func (m *mockSessionService) Resume(_ context.Context, id string) (driving.ChatSession, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	s := newMockSession(id)
	m.sessions[id] = s
	return s, nil
}

func (m *mockSessionService) Get(id string) (driving.ChatSession, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockSessionService) End(id string) error {
	m.ended = append(m.ended, id)
	return nil
}

func (m *mockSessionService) Stored(_ context.Context) ([]string, error) {
	return m.stored, nil
}

// mockKnowledgeBase serves a fixed set of documents.
type mockKnowledgeBase struct {
	docs        map[string]*domain.Document
	chunks      map[string][]domain.Chunk
	deleted     []string
	deletedURIs []string
	pageArgs    [2]int
}

func (m *mockKnowledgeBase) ListSources(_ context.Context) ([]domain.SourceEntry, error) {
	entries := make([]domain.SourceEntry, 0, len(m.docs))
	for _, d := range m.docs {
		entries = append(entries, domain.SourceEntry{
			ID: d.ID, Name: d.Name(), Type: d.FileType, URI: d.URI, CreatedAt: d.CreatedAt, Documents: 1,
		})
	}
	return entries, nil
}

func (m *mockKnowledgeBase) Page(ctx context.Context, page, size int) (domain.SourcePage, error) {
	m.pageArgs = [2]int{page, size}
	entries, _ := m.ListSources(ctx)
	return domain.Paginate(entries, page, size), nil
}

func (m *mockKnowledgeBase) Get(_ context.Context, id string) (*domain.Document, error) {
	if d, ok := m.docs[id]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockKnowledgeBase) GetChunks(_ context.Context, id string) ([]domain.Chunk, error) {
	if _, ok := m.docs[id]; !ok {
		return nil, domain.ErrNotFound
	}
	return m.chunks[id], nil
}

func (m *mockKnowledgeBase) DeleteDocument(_ context.Context, id string) error {
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockKnowledgeBase) DeleteSource(_ context.Context, id string) (int, error) {
	if _, ok := m.docs[id]; !ok {
		return 0, domain.ErrNotFound
	}
	m.deleted = append(m.deleted, id)
	return 2, nil
}

func (m *mockKnowledgeBase) DeleteByURI(_ context.Context, uri string) (int, error) {
	m.deletedURIs = append(m.deletedURIs, uri)
	n := 0
	for _, d := range m.docs {
		if d.URI == uri {
			n++
		}
	}
	return n, nil
}

func (m *mockKnowledgeBase) Stats(_ context.Context) (driving.Stats, error) {
	return driving.Stats{Documents: len(m.docs), Sources: len(m.docs), Chunks: 3, Vectors: 3}, nil
}

func (m *mockKnowledgeBase) Warm(_ context.Context) (int, error) { return 3, nil }

// mockIngestService reports every file as ingested with one chunk.
type mockIngestService struct {
	files    []domain.RawDocument
	cfg      domain.ChunkingConfig
	progress driving.ProgressFunc
	fail     map[string]error
}

func (m *mockIngestService) SetProgress(fn driving.ProgressFunc) { m.progress = fn }

func (m *mockIngestService) Ingest(
	_ context.Context, files []domain.RawDocument, cfg domain.ChunkingConfig,
) (*domain.IngestReport, error) {
	m.files = append(m.files, files...)
	m.cfg = cfg
	report := &domain.IngestReport{Duration: 1500 * time.Millisecond}
	for i := range files {
		r := domain.FileResult{
			Name:       files[i].Name,
			Type:       domain.FileTypeFor(domain.SourceKindFile, files[i].URI),
			Size:       int64(len(files[i].Content)),
			URI:        files[i].URI,
			DocumentID: "doc-" + files[i].Name,
			Chunks:     1,
			Err:        m.fail[files[i].Name],
		}
		report.Results = append(report.Results, r)
		if m.progress != nil {
			m.progress(i+1, len(files), r)
		}
	}
	return report, nil
}

func (m *mockIngestService) Replace(
	ctx context.Context, file domain.RawDocument, cfg domain.ChunkingConfig,
) (domain.FileResult, error) {
	report, err := m.Ingest(ctx, []domain.RawDocument{file}, cfg)
	if err != nil {
		return domain.FileResult{}, err
	}
	return report.Results[0], report.Results[0].Err
}

// mockWatchService returns once the watcher is started.
type mockWatchService struct {
	watched  string
	onEvent  func(driving.WatchEvent)
	debounce time.Duration
	events   []driving.WatchEvent
}

func (m *mockWatchService) SetDebounce(d time.Duration)         { m.debounce = d }
func (m *mockWatchService) OnEvent(fn func(driving.WatchEvent)) { m.onEvent = fn }

func (m *mockWatchService) Run(_ context.Context, watcher driven.Watcher, _ domain.ChunkingConfig) error {
	if c, ok := watcher.(interface{ Root() string }); ok {
		m.watched = c.Root()
	}
	for _, ev := range m.events {
		if m.onEvent != nil {
			m.onEvent(ev)
		}
	}
	return nil
}

// mockSettingsService keeps settings in memory.
type mockSettingsService struct {
	settings domain.AppSettings
	saved    int
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	m.saved++
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding.Provider = p
	m.settings.Embedding.Model = model
	m.settings.Embedding.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetLLMProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider = p
	m.settings.LLM.Model = model
	m.settings.LLM.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetQuery(q domain.QuerySettings) error {
	m.settings.Query = q
	return nil
}

func (m *mockSettingsService) SetChunking(cfg domain.ChunkingConfig) error {
	m.settings.Chunking = cfg
	return nil
}

func (m *mockSettingsService) Validate() error                 { return nil }
func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
func (m *mockSettingsService) ValidateEmbeddingConfig() error  { return nil }
func (m *mockSettingsService) ValidateLLMConfig() error        { return nil }

// testServices is the set installed by setupTestServices.
type testServices struct {
	query    *mockQueryService
	sessions *mockSessionService
	kb       *mockKnowledgeBase
	ingest   *mockIngestService
	watch    *mockWatchService
	settings *mockSettingsService
}

var mocks testServices

func setupTestServices() func() {
	added := time.Date(2024, 3, 2, 10, 30, 0, 0, time.UTC)
	mocks = testServices{
		query:    &mockQueryService{},
		sessions: &mockSessionService{sessions: make(map[string]*mockSession)},
		kb: &mockKnowledgeBase{
			docs: map[string]*domain.Document{
				"doc-1": {
					ID:        "doc-1",
					URI:       "/docs/manual.pdf",
					FileType:  "pdf",
					Title:     "Product Manual",
					Content:   "The warranty lasts two years.",
					Metadata:  map[string]any{domain.MetaFileName: "manual.pdf", domain.MetaPageStarts: []any{0.0}},
					CreatedAt: added,
				},
			},
			chunks: map[string][]domain.Chunk{
				"doc-1": {{
					ID:         "chunk-1",
					DocumentID: "doc-1",
					Content:    "The warranty lasts two years.",
					End:        29,
					Metadata:   map[string]any{domain.MetaPageLabel: "4"},
				}},
			},
		},
		ingest:   &mockIngestService{},
		watch:    &mockWatchService{},
		settings: &mockSettingsService{settings: domain.DefaultAppSettings()},
	}
	SetServices(Services{
		Query:         mocks.query,
		Sessions:      mocks.sessions,
		KnowledgeBase: mocks.kb,
		Ingest:        mocks.ingest,
		Watch:         mocks.watch,
		Settings:      mocks.settings,
	})

	return func() {
		SetServices(Services{})
		resetFlags()
	}
}

// resetFlags restores flag variables between command runs.
func resetFlags() {
	askJSON = false
	kbPage, kbPageSize = 1, domain.DefaultPageSize
	kbShowChunks, kbDeleteDoc, kbDeleteURI = false, false, ""
	ingestManifest, ingestInclude, ingestExclude = "", nil, nil
	ingestNoRecurse, ingestIncludeHidden = false, false
	ingestChunkSize, ingestChunkOverlap = 0, 0
	chatSessionID, chatPlain, chatList = "", false, false
	settingsListKeys = false
	watchInclude, watchExclude = nil, nil
	watchNoRecurse, watchInitial = false, false
	watchDebounce = 500 * time.Millisecond

	var walk func(c *cobra.Command)
	walk = func(c *cobra.Command) {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		for _, sub := range c.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
	rootCmd.SetIn(nil)
	rootCmd.SetArgs(nil)
}
