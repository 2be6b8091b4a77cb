package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptTextQA answers a question from context.
	// The template expects %s (context) then %s (question).
	PromptTextQA = "text_qa"

	// PromptRefine improves an existing answer with more context.
	// The template expects %s (question), %s (existing answer) then %s (context).
	PromptRefine = "refine"

	// PromptSummary combines passages into one answer for tree summarisation.
	// The template expects %s (context) then %s (question).
	PromptSummary = "summary"

	// PromptRerank asks the model for a 0-10 relevance score.
	// The template expects %s (question) then %s (passage).
	PromptRerank = "rerank"

	// PromptSystem is the system message sent with every answer request.
	// This prompt has no format placeholders.
	PromptSystem = "system"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}

// DefaultPrompts returns the built-in prompt templates keyed by name.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
func DefaultPrompts() map[string]string {
	return map[string]string{
		PromptTextQA: `Context information is below.
---------------------
%s
---------------------
Given the context information and not prior knowledge, answer the query.
Query: %s
Answer:`,

		PromptRefine: `The original query is as follows: %s
We have provided an existing answer: %s
We have the opportunity to refine the existing answer (only if needed) with some more context below.
------------
%s
------------
Given the new context, refine the original answer to better answer the query. If the context isn't useful, return the original answer.
Refined Answer:`,

		PromptSummary: `Context information from multiple sources is below.
---------------------
%s
---------------------
Given the information from multiple sources and not prior knowledge, answer the query.
Query: %s
Answer:`,

		PromptRerank: `Rate how relevant the passage is to the question on a scale from 0 (unrelated) to 10 (answers it directly).
Return ONLY the number, nothing else.

Question: %s

Passage:
%s

Score:`,

		PromptSystem: `You are ThinkRAG, an assistant that answers questions using only the documents in the user's knowledge base. Cite file names when they help, and say so plainly when the documents do not contain the answer.`,
	}
}
