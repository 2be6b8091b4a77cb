package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrDuplicateID", ErrDuplicateID},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrInvalidConfig", ErrInvalidConfig},
		{"ErrNotImplemented", ErrNotImplemented},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrEmptyPrompt", ErrEmptyPrompt},
		{"ErrIndexNotReady", ErrIndexNotReady},
		{"ErrGenerationTimeout", ErrGenerationTimeout},
		{"ErrProviderError", ErrProviderError},
		{"ErrStreamConsumed", ErrStreamConsumed},
		{"ErrQueryInProgress", ErrQueryInProgress},
		{"ErrSessionClosed", ErrSessionClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrors_Distinct tests that every error kind can be told apart
func TestErrors_Distinct(t *testing.T) {
	all := []error{
		ErrNotFound, ErrDuplicateID, ErrInvalidInput, ErrInvalidConfig,
		ErrNotImplemented, ErrUnsupportedType, ErrLLMUnavailable,
		ErrEmbeddingUnavailable, ErrEmptyPrompt, ErrIndexNotReady,
		ErrGenerationTimeout, ErrProviderError, ErrStreamConsumed,
		ErrQueryInProgress, ErrSessionClosed,
	}
	for i, a := range all {
		for j, b := range all {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}

// TestErrors_Wrapped tests that wrapped errors remain matchable
func TestErrors_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("query: %w", ErrIndexNotReady)
	assert.True(t, errors.Is(wrapped, ErrIndexNotReady))
	assert.False(t, errors.Is(wrapped, ErrEmptyPrompt))

	joined := errors.Join(fmt.Errorf("a.txt: %w", ErrUnsupportedType), fmt.Errorf("b.txt: %w", ErrProviderError))
	assert.True(t, errors.Is(joined, ErrUnsupportedType))
	assert.True(t, errors.Is(joined, ErrProviderError))
}

// TestErrNotFound tests ErrNotFound error
func TestErrNotFound(t *testing.T) {
	assert.Equal(t, "not found", ErrNotFound.Error())
	assert.True(t, errors.Is(ErrNotFound, ErrNotFound))
	assert.False(t, errors.Is(ErrNotFound, ErrDuplicateID))
}

// TestErrDuplicateID tests ErrDuplicateID error
func TestErrDuplicateID(t *testing.T) {
	assert.Equal(t, "duplicate id", ErrDuplicateID.Error())
}

func TestProviderStatusError(t *testing.T) {
	err := &ProviderStatusError{Provider: "ollama", StatusCode: 504, Body: "gateway timeout"}
	assert.Equal(t, "ollama error (status 504): gateway timeout", err.Error())
	assert.True(t, err.Timeout())

	wrapped := fmt.Errorf("chat: %w", &ProviderStatusError{Provider: "openai", StatusCode: 500})
	var pse *ProviderStatusError
	assert.True(t, errors.As(wrapped, &pse))
	assert.False(t, pse.Timeout())
	assert.Equal(t, 500, pse.StatusCode)
}
