package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID indicates an entity with the same identifier is already stored.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfig indicates bad chunking, retrieval or provider parameters.
	// It is always returned before any state is mutated.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown MIME type or provider.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// Query Errors.

	// ErrEmptyPrompt indicates the query prompt was blank.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrIndexNotReady indicates no documents have been indexed yet.
	ErrIndexNotReady = errors.New("index not ready")

	// ErrGenerationTimeout indicates the language model timed out while generating.
	ErrGenerationTimeout = errors.New("generation timeout")

	// ErrProviderError indicates the embedding or language model provider failed.
	ErrProviderError = errors.New("provider error")

	// ErrStreamConsumed indicates an answer stream was iterated more than once.
	ErrStreamConsumed = errors.New("answer stream already consumed")

	// Session Errors.

	// ErrQueryInProgress indicates the session is still streaming a previous answer.
	ErrQueryInProgress = errors.New("query in progress")

	// ErrSessionClosed indicates the session has been ended.
	ErrSessionClosed = errors.New("session closed")
)

// ProviderStatusError is a non-success HTTP response from a model provider.
type ProviderStatusError struct {
	// Provider names the remote service, e.g. "ollama".
	Provider string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the response body, possibly truncated.
	Body string
}

// Error implements the error interface.
func (e *ProviderStatusError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// Timeout reports whether the status signals a request or gateway timeout.
func (e *ProviderStatusError) Timeout() bool {
	return e.StatusCode == 408 || e.StatusCode == 504
}
