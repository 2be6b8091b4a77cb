package driven

import (
	"context"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// PostProcessor turns a normalised document into chunks.
// PostProcessors are chained in a pipeline (chunking, then page labelling).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a document and the chunks produced so far.
	// The chunker receives nil and returns new chunks; later stages annotate them.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)
}

// PipelineBuilder builds a pipeline for a chunking configuration.
type PipelineBuilder interface {
	// BuildPipeline returns the default processors configured for cfg.
	// Returns domain.ErrInvalidConfig for out of range parameters.
	BuildPipeline(cfg domain.ChunkingConfig) (PostProcessorPipeline, error)
}
