// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - DocumentStore: Document and chunk persistence
//   - VectorIndex: Nearest-neighbour retrieval over chunk embeddings
//   - EmbeddingService: Generates vector embeddings
//   - NormaliserRegistry: Selects the normaliser for a MIME type
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - LLMService: Answer generation. Without it, queries fail with ErrLLMUnavailable.
//   - Reranker: Secondary relevance model. Without it, retrieval order is kept.
//   - ChatStore: Chat turn persistence. Without it, sessions live in memory only.
//   - PromptStore: Editable prompt templates. Without it, built-in prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or normaliser package
package driven
