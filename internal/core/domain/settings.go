package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// Chunking limits accepted by ingestion.
const (
	// MinChunkSize is the smallest accepted chunk size.
	MinChunkSize = 1

	// MaxChunkSize is the largest accepted chunk size.
	MaxChunkSize = 4096
)

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderLocal is the built-in offline hashing embedder.
	AIProviderLocal AIProvider = "local"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic, AIProviderLocal:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderLocal
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderLocal:
		return "Local hashing embedder (offline)"
	default:
		return unknownDescription
	}
}

// ResponseMode selects how retrieved chunks are turned into an answer.
type ResponseMode string

// Available response modes.
const (
	// ResponseModeCompact packs as many chunks as fit into each model call.
	ResponseModeCompact ResponseMode = "compact"

	// ResponseModeTreeSummarize summarises packs of chunks bottom-up.
	ResponseModeTreeSummarize ResponseMode = "tree_summarize"

	// ResponseModeRefine refines the answer one chunk at a time.
	ResponseModeRefine ResponseMode = "refine"
)

// IsValid returns true if the response mode is recognised.
func (m ResponseMode) IsValid() bool {
	switch m {
	case ResponseModeCompact, ResponseModeTreeSummarize, ResponseModeRefine:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m ResponseMode) String() string {
	return string(m)
}

// Description returns a human-readable description of the mode.
func (m ResponseMode) Description() string {
	switch m {
	case ResponseModeCompact:
		return "Compact (pack chunks into as few calls as possible)"
	case ResponseModeTreeSummarize:
		return "Tree Summarize (summarise chunk groups recursively)"
	case ResponseModeRefine:
		return "Refine (improve the answer chunk by chunk)"
	default:
		return unknownDescription
	}
}

// RerankerKind identifies a reranking strategy.
type RerankerKind string

// Available reranker kinds.
const (
	// RerankerNone disables the reranking stage.
	RerankerNone RerankerKind = "none"

	// RerankerCrossEncoder scores query and passage jointly with a model.
	RerankerCrossEncoder RerankerKind = "cross_encoder"
)

// IsValid returns true if the reranker kind is recognised.
func (k RerankerKind) IsValid() bool {
	return k == RerankerNone || k == RerankerCrossEncoder
}

// String returns the string representation.
func (k RerankerKind) String() string {
	return string(k)
}

// Description returns a human-readable description of the kind.
func (k RerankerKind) Description() string {
	switch k {
	case RerankerNone:
		return "None (keep retrieval order)"
	case RerankerCrossEncoder:
		return "Cross-encoder (rescore query and passage pairs)"
	default:
		return unknownDescription
	}
}

// LexicalRerankerModel selects the offline token-overlap cross-encoder.
const LexicalRerankerModel = "lexical"

// Reranker is the resolved reranking variant: None or CrossEncoder(Model).
type Reranker struct {
	// Kind is the variant tag.
	Kind RerankerKind

	// Model is the cross-encoder model id. Empty for None.
	Model string
}

// NoReranker returns the None variant.
func NoReranker() Reranker {
	return Reranker{Kind: RerankerNone}
}

// CrossEncoder returns the CrossEncoder variant for a model id.
func CrossEncoder(model string) Reranker {
	return Reranker{Kind: RerankerCrossEncoder, Model: model}
}

// Enabled returns true if a reranking stage runs.
func (r Reranker) Enabled() bool {
	return r.Kind == RerankerCrossEncoder
}

// String returns the variant in a compact form.
func (r Reranker) String() string {
	if r.Enabled() {
		return fmt.Sprintf("%s(%s)", r.Kind, r.Model)
	}
	return string(RerankerNone)
}

// StorageBackend selects where documents and chunks are persisted.
type StorageBackend string

// Available storage backends.
const (
	// StorageSQLite persists to a SQLite database file.
	StorageSQLite StorageBackend = "sqlite"

	// StorageMemory keeps everything in process memory.
	StorageMemory StorageBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	return b == StorageSQLite || b == StorageMemory
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() || e.Provider == AIProviderAnthropic {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string

	// Timeout bounds a single model request. Zero uses the adapter default.
	Timeout time.Duration
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || l.Provider == AIProviderLocal {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RerankerSettings holds reranking configuration.
type RerankerSettings struct {
	// Kind is the reranking strategy.
	Kind RerankerKind

	// Model is the cross-encoder model id.
	Model string

	// BaseURL points at a /rerank endpoint. Empty uses the LLM or lexical scorer.
	BaseURL string
}

// Resolve returns the tagged variant for these settings.
func (r RerankerSettings) Resolve() Reranker {
	if r.Kind == RerankerCrossEncoder {
		return CrossEncoder(r.Model)
	}
	return NoReranker()
}

// QuerySettings holds retrieval and generation parameters.
type QuerySettings struct {
	// TopK is the number of chunks retrieved from the index.
	TopK int

	// TopN is the number of chunks kept after reranking.
	TopN int

	// Temperature controls generation randomness.
	Temperature float64

	// ResponseMode selects the answer synthesis strategy.
	ResponseMode ResponseMode

	// ContextWindow is the character budget of a single model prompt.
	ContextWindow int

	// Reranker holds reranking settings.
	Reranker RerankerSettings
}

// Validate checks the query parameters.
func (q QuerySettings) Validate() error {
	if q.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidConfig, q.TopK)
	}
	if q.Temperature < 0 || q.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be within 0..2, got %g", ErrInvalidConfig, q.Temperature)
	}
	if !q.ResponseMode.IsValid() {
		return fmt.Errorf("%w: unknown response mode %q", ErrInvalidConfig, q.ResponseMode)
	}
	if q.ContextWindow <= 0 {
		return fmt.Errorf("%w: context window must be positive", ErrInvalidConfig)
	}
	if !q.Reranker.Kind.IsValid() {
		return fmt.Errorf("%w: unknown reranker %q", ErrInvalidConfig, q.Reranker.Kind)
	}
	if q.Reranker.Kind == RerankerCrossEncoder {
		if q.Reranker.Model == "" {
			return fmt.Errorf("%w: cross encoder requires a model id", ErrInvalidConfig)
		}
		if q.TopN <= 0 || q.TopN > q.TopK {
			return fmt.Errorf("%w: top_n must be within 1..top_k, got %d", ErrInvalidConfig, q.TopN)
		}
	}
	return nil
}

// ChunkingConfig holds chunk size and overlap, measured in runes.
type ChunkingConfig struct {
	// ChunkSize is the maximum chunk length.
	ChunkSize int

	// Overlap is the number of runes shared by consecutive chunks.
	Overlap int
}

// Validate checks 1 <= ChunkSize <= MaxChunkSize and 0 <= Overlap < ChunkSize.
func (c ChunkingConfig) Validate() error {
	if c.ChunkSize < MinChunkSize || c.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: chunk_size must be within %d..%d, got %d",
			ErrInvalidConfig, MinChunkSize, MaxChunkSize, c.ChunkSize)
	}
	if c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be within 0..%d, got %d",
			ErrInvalidConfig, c.ChunkSize-1, c.Overlap)
	}
	return nil
}

// IngestSettings holds ingestion behaviour.
type IngestSettings struct {
	// Concurrency bounds how many documents are processed at once.
	Concurrency int

	// DedupeByContent skips files whose bytes match an existing document.
	DedupeByContent bool

	// MaxFileSize rejects larger files. Zero disables the check.
	MaxFileSize int64

	// EmbedBatchSize is the number of chunks sent per embedding request.
	EmbedBatchSize int

	// EmbedRatePerSecond limits embedding requests. Zero disables limiting.
	EmbedRatePerSecond float64
}

// ChatSettings holds chat session behaviour.
type ChatSettings struct {
	// Greeting is the assistant turn a cleared session starts with.
	Greeting string
}

// StorageSettings holds persistence configuration.
type StorageSettings struct {
	// Backend selects the store implementation.
	Backend StorageBackend

	// Path is the database file for file-backed stores. Empty uses the default.
	Path string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Query holds retrieval and generation settings.
	Query QuerySettings

	// Chunking holds default chunking settings.
	Chunking ChunkingConfig

	// Ingest holds ingestion settings.
	Ingest IngestSettings

	// Chat holds chat session settings.
	Chat ChatSettings

	// Storage holds persistence settings.
	Storage StorageSettings
}

// Validate checks every section that has a closed set of values or bounds.
func (s AppSettings) Validate() error {
	if err := s.Query.Validate(); err != nil {
		return err
	}
	if err := s.Chunking.Validate(); err != nil {
		return err
	}
	if s.Ingest.Concurrency <= 0 {
		return fmt.Errorf("%w: ingest concurrency must be positive", ErrInvalidConfig)
	}
	if !s.Storage.Backend.IsValid() {
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, s.Storage.Backend)
	}
	return nil
}

// DefaultGreeting is the assistant turn a new or cleared chat starts with.
const DefaultGreeting = "Welcome! Ask anything about your knowledge base."

// DefaultRerankerModel is the cross-encoder model suggested by the settings wizard.
const DefaultRerankerModel = "BAAI/bge-reranker-base"

// DefaultPageSize is the number of sources listed per page.
const DefaultPageSize = 5

// DefaultAppSettings returns settings with sensible defaults.
// The local embedder works offline; an LLM must be configured explicitly.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderLocal,
			Model:    DefaultEmbeddingModels()[AIProviderLocal],
		},
		// LLM is left unconfigured - user must set up via settings wizard
		LLM: LLMSettings{},
		Query: QuerySettings{
			TopK:          5,
			TopN:          2,
			Temperature:   0.1,
			ResponseMode:  ResponseModeCompact,
			ContextWindow: 12000,
			Reranker: RerankerSettings{
				Kind:  RerankerNone,
				Model: DefaultRerankerModel,
			},
		},
		Chunking: ChunkingConfig{
			ChunkSize: 1024,
			Overlap:   128,
		},
		Ingest: IngestSettings{
			Concurrency:    4,
			MaxFileSize:    200 << 20,
			EmbedBatchSize: 32,
		},
		Chat: ChatSettings{
			Greeting: DefaultGreeting,
		},
		Storage: StorageSettings{
			Backend: StorageSQLite,
		},
	}
}

// AllResponseModes returns all available response modes.
func AllResponseModes() []ResponseMode {
	return []ResponseMode{
		ResponseModeCompact,
		ResponseModeTreeSummarize,
		ResponseModeRefine,
	}
}

// AllRerankerKinds returns all available reranker kinds.
func AllRerankerKinds() []RerankerKind {
	return []RerankerKind{
		RerankerNone,
		RerankerCrossEncoder,
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderLocal,
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderLocal:  "hash-512",
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Local hashing embedder
		"hash-256": 256,
		"hash-512": 512,
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
