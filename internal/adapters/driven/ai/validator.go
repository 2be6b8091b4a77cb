package ai

import (
	"fmt"
	"slices"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks provider settings before they are saved.
// A provider that cannot serve the role, or lacks its API key, is rejected
// without a network call; anything else is pinged.
type ConfigValidator struct{}

// NewConfigValidator creates a new AI config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateEmbedding rejects providers that cannot embed chunks, then pings the provider.
// An empty provider is left for the defaults to fill in.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	if config == nil || config.Provider == "" {
		return nil
	}
	if err := checkProvider(config.Provider, config.APIKey, domain.AllEmbeddingProviders(), "embeddings"); err != nil {
		return err
	}
	return ValidateEmbeddingConfig(config)
}

// ValidateLLM rejects providers that cannot generate answers, then pings the provider.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	if config == nil || config.Provider == "" {
		return nil
	}
	if err := checkProvider(config.Provider, config.APIKey, domain.AllLLMProviders(), "answer generation"); err != nil {
		return err
	}
	return ValidateLLMConfig(config)
}

func checkProvider(p domain.AIProvider, apiKey string, supported []domain.AIProvider, role string) error {
	if !p.IsValid() {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidConfig, p)
	}
	if !slices.Contains(supported, p) {
		return fmt.Errorf("%w: %s does not support %s", domain.ErrInvalidConfig, p, role)
	}
	if p.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidConfig, p)
	}
	return nil
}
