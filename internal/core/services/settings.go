package services

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider   = "embedding.provider"
	keyEmbedModel      = "embedding.model"
	keyEmbedBaseURL    = "embedding.base_url"
	keyEmbedAPIKey     = "embedding.api_key"
	keyLLMProvider     = "llm.provider"
	keyLLMModel        = "llm.model"
	keyLLMBaseURL      = "llm.base_url"
	keyLLMAPIKey       = "llm.api_key"
	keyLLMTimeout      = "llm.timeout"
	keyTopK            = "query.top_k"
	keyTopN            = "query.top_n"
	keyTemperature     = "query.temperature"
	keyResponseMode    = "query.response_mode"
	keyContextWindow   = "query.context_window"
	keyRerankerKind    = "reranker.kind"
	keyRerankerModel   = "reranker.model"
	keyRerankerBaseURL = "reranker.base_url"
	keyChunkSize       = "chunking.chunk_size"
	keyChunkOverlap    = "chunking.chunk_overlap"
	keyIngestWorkers   = "ingest.concurrency"
	keyIngestDedupe    = "ingest.dedupe_by_content"
	keyIngestMaxSize   = "ingest.max_file_size"
	keyIngestBatch     = "ingest.embed_batch_size"
	keyIngestRate      = "ingest.embed_rate"
	keyChatGreeting    = "chat.greeting"
	keyStorageBackend  = "storage.backend"
	keyStoragePath     = "storage.path"
	defaultOllamaURL   = "http://localhost:11434"
	envOpenAIAPIKey    = "OPENAI_API_KEY"
	envAnthropicAPIKey = "ANTHROPIC_API_KEY"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
// Missing or invalid values fall back to defaults. Empty API keys fall back
// to the provider environment variables.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(keyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
			Timeout:  s.getDuration(keyLLMTimeout, defaults.LLM.Timeout),
		},
		Query: domain.QuerySettings{
			TopK:          s.getInt(keyTopK, defaults.Query.TopK),
			TopN:          s.getInt(keyTopN, defaults.Query.TopN),
			Temperature:   s.getFloat(keyTemperature, defaults.Query.Temperature),
			ResponseMode:  s.getResponseMode(defaults.Query.ResponseMode),
			ContextWindow: s.getInt(keyContextWindow, defaults.Query.ContextWindow),
			Reranker: domain.RerankerSettings{
				Kind:    s.getRerankerKind(defaults.Query.Reranker.Kind),
				Model:   s.getString(keyRerankerModel, defaults.Query.Reranker.Model),
				BaseURL: s.configStore.GetString(keyRerankerBaseURL),
			},
		},
		Chunking: domain.ChunkingConfig{
			ChunkSize: s.getInt(keyChunkSize, defaults.Chunking.ChunkSize),
			Overlap:   s.getIntAllowZero(keyChunkOverlap, defaults.Chunking.Overlap),
		},
		Ingest: domain.IngestSettings{
			Concurrency:        s.getInt(keyIngestWorkers, defaults.Ingest.Concurrency),
			DedupeByContent:    s.getBool(keyIngestDedupe, defaults.Ingest.DedupeByContent),
			MaxFileSize:        int64(s.getIntAllowZero(keyIngestMaxSize, int(defaults.Ingest.MaxFileSize))),
			EmbedBatchSize:     s.getInt(keyIngestBatch, defaults.Ingest.EmbedBatchSize),
			EmbedRatePerSecond: s.getFloat(keyIngestRate, defaults.Ingest.EmbedRatePerSecond),
		},
		Chat: domain.ChatSettings{
			Greeting: s.getString(keyChatGreeting, defaults.Chat.Greeting),
		},
		Storage: domain.StorageSettings{
			Backend: s.getStorageBackend(defaults.Storage.Backend),
			Path:    s.configStore.GetString(keyStoragePath),
		},
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = envAPIKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = envAPIKey(settings.LLM.Provider)
	}

	return settings, nil
}

// Save persists application settings.
// API keys are only written when set so environment keys never reach the file.
//
//nolint:gocyclo // One check per persisted key
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	type entry struct {
		key   string
		value any
	}
	values := []entry{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyTopK, settings.Query.TopK},
		{keyTopN, settings.Query.TopN},
		{keyTemperature, settings.Query.Temperature},
		{keyResponseMode, settings.Query.ResponseMode.String()},
		{keyContextWindow, settings.Query.ContextWindow},
		{keyRerankerKind, settings.Query.Reranker.Kind.String()},
		{keyRerankerModel, settings.Query.Reranker.Model},
		{keyRerankerBaseURL, settings.Query.Reranker.BaseURL},
		{keyChunkSize, settings.Chunking.ChunkSize},
		{keyChunkOverlap, settings.Chunking.Overlap},
		{keyIngestWorkers, settings.Ingest.Concurrency},
		{keyIngestDedupe, settings.Ingest.DedupeByContent},
		{keyIngestMaxSize, settings.Ingest.MaxFileSize},
		{keyIngestBatch, settings.Ingest.EmbedBatchSize},
		{keyIngestRate, settings.Ingest.EmbedRatePerSecond},
		{keyChatGreeting, settings.Chat.Greeting},
		{keyStorageBackend, string(settings.Storage.Backend)},
		{keyStoragePath, settings.Storage.Path},
	}
	if settings.LLM.Timeout > 0 {
		values = append(values, entry{keyLLMTimeout, settings.LLM.Timeout.String()})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if key := settings.Embedding.APIKey; key != "" && key != envAPIKey(settings.Embedding.Provider) {
		if err := s.configStore.Set(keyEmbedAPIKey, key); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if key := settings.LLM.APIKey; key != "" && key != envAPIKey(settings.LLM.Provider) {
		if err := s.configStore.Set(keyLLMAPIKey, key); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return s.configStore.Save()
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}

	// Validate provider supports embeddings
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	if apiKey == "" {
		apiKey = envAPIKey(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	// Only Ollama talks to a user-hosted endpoint
	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}

	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if !slices.Contains(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("provider %s does not support generation", provider)
	}

	if apiKey == "" {
		apiKey = envAPIKey(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.LLM.Model = model
	} else if defaultModel, ok := domain.DefaultLLMModels()[provider]; ok {
		settings.LLM.Model = defaultModel
	}

	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// SetQuery updates retrieval and generation parameters.
func (s *SettingsService) SetQuery(query domain.QuerySettings) error {
	if err := query.Validate(); err != nil {
		return err
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Query = query
	return s.Save(settings)
}

// SetChunking updates default chunking parameters.
func (s *SettingsService) SetChunking(cfg domain.ChunkingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Chunking = cfg
	return s.Save(settings)
}

// Validate checks the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured",
			domain.ErrInvalidConfig, settings.Embedding.Provider)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero keeps an explicitly stored zero.
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getResponseMode(defaultVal domain.ResponseMode) domain.ResponseMode {
	mode := domain.ResponseMode(s.configStore.GetString(keyResponseMode))
	if !mode.IsValid() {
		return defaultVal
	}
	return mode
}

func (s *SettingsService) getRerankerKind(defaultVal domain.RerankerKind) domain.RerankerKind {
	kind := domain.RerankerKind(s.configStore.GetString(keyRerankerKind))
	if !kind.IsValid() {
		return defaultVal
	}
	return kind
}

func (s *SettingsService) getStorageBackend(defaultVal domain.StorageBackend) domain.StorageBackend {
	backend := domain.StorageBackend(s.configStore.GetString(keyStorageBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}

func envAPIKey(provider domain.AIProvider) string {
	switch provider {
	case domain.AIProviderOpenAI:
		return os.Getenv(envOpenAIAPIKey)
	case domain.AIProviderAnthropic:
		return os.Getenv(envAnthropicAPIKey)
	default:
		return ""
	}
}
