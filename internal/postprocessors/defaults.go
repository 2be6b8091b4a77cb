package postprocessors

import (
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/postprocessors/annotator"
	"github.com/weiranzhiqian/ThinkRAG/internal/postprocessors/chunker"
)

// DefaultProcessors is the processor order used for ingestion.
var DefaultProcessors = []string{"chunker", "annotator"}

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("annotator", buildAnnotator)
}

// NewDefaultRegistry returns a registry holding the built-in processors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// BuildPipeline assembles the default processors for a chunking config.
// Returns domain.ErrInvalidConfig for an out-of-range size or overlap.
func (r *Registry) BuildPipeline(cfg domain.ChunkingConfig) (driven.PostProcessorPipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	configs := map[string]map[string]any{
		"chunker": {
			"chunk_size": cfg.ChunkSize,
			"overlap":    cfg.Overlap,
		},
	}

	pipeline := NewPipeline()
	for _, name := range DefaultProcessors {
		proc, err := r.Build(name, configs[name])
		if err != nil {
			return nil, err
		}
		pipeline.Add(proc)
	}
	return pipeline, nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Runes per chunk (default: 1024)
//   - overlap (int): Overlapping runes between chunks (default: 128)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...)
}

func buildAnnotator(_ map[string]any) (driven.PostProcessor, error) {
	return annotator.New(), nil
}

// getIntFromConfig safely extracts an int from generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
