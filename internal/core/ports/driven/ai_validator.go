package driven

import "github.com/weiranzhiqian/ThinkRAG/internal/core/domain"

// AIConfigValidator validates AI provider configurations before they are saved.
// Implementations test connectivity to the underlying AI services.
type AIConfigValidator interface {
	// ValidateEmbedding pings the embedding provider.
	// Returns nil if configuration is valid or not configured.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM pings the LLM provider.
	// Returns nil if configuration is valid or not configured.
	ValidateLLM(config *domain.LLMSettings) error
}
