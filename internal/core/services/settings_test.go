package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driven/storage/memory"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

func TestNewSettingsService(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NotNil(t, service)
}

func TestSettingsService_Get_ReturnsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	require.NotNil(t, settings)

	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.Embedding.Model, settings.Embedding.Model)
	assert.Equal(t, defaults.Query, settings.Query)
	assert.Equal(t, defaults.Chunking, settings.Chunking)
	assert.Equal(t, defaults.Ingest, settings.Ingest)
	assert.Equal(t, defaults.Chat.Greeting, settings.Chat.Greeting)
	assert.Equal(t, domain.StorageSQLite, settings.Storage.Backend)
}

func TestSettingsService_Get_ReturnsStoredValues(t *testing.T) {
	store := memory.NewConfigStoreFrom(map[string]any{
		"embedding.provider":       "openai",
		"embedding.model":          "text-embedding-3-large",
		"llm.provider":             "ollama",
		"llm.timeout":              "45s",
		"query.top_k":              int64(8),
		"query.top_n":              int64(3),
		"query.temperature":        0.0,
		"query.response_mode":      "refine",
		"reranker.kind":            "cross_encoder",
		"reranker.model":           "lexical",
		"chunking.chunk_size":      int64(256),
		"chunking.chunk_overlap":   int64(0),
		"ingest.dedupe_by_content": true,
		"storage.backend":          "memory",
	})
	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-large", settings.Embedding.Model)
	assert.Equal(t, 45*time.Second, settings.LLM.Timeout)
	assert.Equal(t, 8, settings.Query.TopK)
	assert.Equal(t, 3, settings.Query.TopN)
	assert.Zero(t, settings.Query.Temperature)
	assert.Equal(t, domain.ResponseModeRefine, settings.Query.ResponseMode)
	assert.Equal(t, domain.CrossEncoder("lexical"), settings.Query.Reranker.Resolve())
	assert.Equal(t, domain.ChunkingConfig{ChunkSize: 256, Overlap: 0}, settings.Chunking)
	assert.True(t, settings.Ingest.DedupeByContent)
	assert.Equal(t, domain.StorageMemory, settings.Storage.Backend)
}

func TestSettingsService_Get_InvalidValuesReturnDefaults(t *testing.T) {
	store := memory.NewConfigStoreFrom(map[string]any{
		"embedding.provider":  "invalid_provider",
		"query.response_mode": "accumulate",
		"reranker.kind":       "colbert",
		"storage.backend":     "postgres",
		"llm.timeout":         "soon",
	})
	service := NewSettingsService(store, nil)

	settings, err := service.Get()

	require.NoError(t, err)
	defaults := domain.DefaultAppSettings()
	assert.Equal(t, defaults.Embedding.Provider, settings.Embedding.Provider)
	assert.Equal(t, defaults.Query.ResponseMode, settings.Query.ResponseMode)
	assert.Equal(t, defaults.Query.Reranker.Kind, settings.Query.Reranker.Kind)
	assert.Equal(t, defaults.Storage.Backend, settings.Storage.Backend)
	assert.Zero(t, settings.LLM.Timeout)
}

func TestSettingsService_Get_APIKeyFromEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	store := memory.NewConfigStoreFrom(map[string]any{"llm.provider": "anthropic"})
	service := NewSettingsService(store, nil)

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-env", settings.LLM.APIKey)

	require.NoError(t, service.Save(settings))
	assert.Empty(t, store.GetString("llm.api_key"))
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	settings := domain.DefaultAppSettings()
	settings.Query.TopK = 7
	settings.Query.Temperature = 0.7
	settings.Query.ResponseMode = domain.ResponseModeTreeSummarize
	settings.Chunking = domain.ChunkingConfig{ChunkSize: 512, Overlap: 64}
	settings.Chat.Greeting = "Hi"
	settings.LLM = domain.LLMSettings{Provider: domain.AIProviderOllama, Model: "llama3.2", BaseURL: "http://gpu:11434"}
	require.NoError(t, service.Save(&settings))

	loaded, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, settings.Query, loaded.Query)
	assert.Equal(t, settings.Chunking, loaded.Chunking)
	assert.Equal(t, "Hi", loaded.Chat.Greeting)
	assert.Equal(t, "http://gpu:11434", loaded.LLM.BaseURL)
}

func TestSettingsService_SaveRejectsInvalid(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	settings := domain.DefaultAppSettings()
	settings.Chunking.Overlap = settings.Chunking.ChunkSize

	err := service.Save(&settings)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Empty(t, store.Keys())
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOllama, "", ""))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)

	err = service.SetEmbeddingProvider(domain.AIProviderOpenAI, "", "")
	assert.Error(t, err)

	require.NoError(t, service.SetEmbeddingProvider(domain.AIProviderOpenAI, "text-embedding-3-large", "sk-test"))
	settings, err = service.Get()
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-large", settings.Embedding.Model)
	assert.Empty(t, settings.Embedding.BaseURL)
	assert.Equal(t, "sk-test", settings.Embedding.APIKey)

	err = service.SetEmbeddingProvider(domain.AIProviderAnthropic, "", "key")
	assert.Error(t, err)
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	store := memory.NewConfigStore()
	service := NewSettingsService(store, nil)

	require.NoError(t, service.SetLLMProvider(domain.AIProviderAnthropic, "", "sk-ant"))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderAnthropic, settings.LLM.Provider)
	assert.Equal(t, "claude-3-5-sonnet-latest", settings.LLM.Model)

	assert.Error(t, service.SetLLMProvider(domain.AIProviderLocal, "", ""))
	assert.Error(t, service.SetLLMProvider("bogus", "", ""))
}

func TestSettingsService_SetQuery(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	query := domain.DefaultAppSettings().Query
	query.Reranker = domain.RerankerSettings{Kind: domain.RerankerCrossEncoder, Model: "BAAI/bge-reranker-base"}
	query.TopN = 9
	assert.ErrorIs(t, service.SetQuery(query), domain.ErrInvalidConfig)

	query.TopN = 3
	require.NoError(t, service.SetQuery(query))
	settings, err := service.Get()
	require.NoError(t, err)
	assert.True(t, settings.Query.Reranker.Resolve().Enabled())
}

func TestSettingsService_SetChunking(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)

	assert.ErrorIs(t, service.SetChunking(domain.ChunkingConfig{ChunkSize: 0}), domain.ErrInvalidConfig)
	require.NoError(t, service.SetChunking(domain.ChunkingConfig{ChunkSize: 40, Overlap: 10}))

	settings, err := service.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.ChunkingConfig{ChunkSize: 40, Overlap: 10}, settings.Chunking)
}

func TestSettingsService_Validate(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	service := NewSettingsService(memory.NewConfigStore(), nil)
	assert.NoError(t, service.Validate())

	store := memory.NewConfigStoreFrom(map[string]any{"embedding.provider": "openai"})
	service = NewSettingsService(store, nil)
	assert.ErrorIs(t, service.Validate(), domain.ErrInvalidConfig)
}

func TestSettingsService_GetDefaults(t *testing.T) {
	service := NewSettingsService(memory.NewConfigStore(), nil)
	assert.Equal(t, domain.DefaultAppSettings(), service.GetDefaults())
}

func TestSettingsService_ValidateConfigUsesValidator(t *testing.T) {
	validator := &mockAIConfigValidator{llmErr: errors.New("unreachable")}
	service := NewSettingsService(memory.NewConfigStore(), validator)

	assert.NoError(t, service.ValidateEmbeddingConfig())
	assert.EqualError(t, service.ValidateLLMConfig(), "unreachable")

	assert.NoError(t, NewSettingsService(memory.NewConfigStore(), nil).ValidateLLMConfig())
}

type mockAIConfigValidator struct {
	embeddingErr error
	llmErr       error
}

func (m *mockAIConfigValidator) ValidateEmbedding(_ *domain.EmbeddingSettings) error {
	return m.embeddingErr
}

func (m *mockAIConfigValidator) ValidateLLM(_ *domain.LLMSettings) error {
	return m.llmErr
}
