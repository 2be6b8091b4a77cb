// Package local provides an offline embedding service based on feature hashing.
//
// Each lower-cased word and word bigram is hashed into a fixed number of
// buckets with a sign bit, then the vector is L2 normalised.
package local

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultModel is the default hashing model id.
const DefaultModel = "hash-512"

const modelPrefix = "hash-"

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

// EmbeddingService hashes text into fixed-size vectors.
type EmbeddingService struct {
	model      string
	dimensions int
}

// NewEmbeddingService creates a hashing embedder. The model id encodes the
// dimension as hash-N; an empty model uses DefaultModel.
func NewEmbeddingService(model string) (*EmbeddingService, error) {
	if model == "" {
		model = DefaultModel
	}
	dims, err := strconv.Atoi(strings.TrimPrefix(model, modelPrefix))
	if !strings.HasPrefix(model, modelPrefix) || err != nil || dims <= 0 {
		return nil, fmt.Errorf("local: unknown model %q, expected hash-N", model)
	}
	return &EmbeddingService{model: model, dimensions: dims}, nil
}

// Embed hashes a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.vector(text), nil
}

// EmbedBatch hashes texts in order.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = s.vector(text)
	}
	return out, nil
}

// Dimensions returns the number of hash buckets.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the hashing model id.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping always succeeds.
func (s *EmbeddingService) Ping(context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}

func (s *EmbeddingService) vector(text string) []float32 {
	vec := make([]float32, s.dimensions)
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	for i, tok := range tokens {
		s.add(vec, tok, 1)
		if i > 0 {
			s.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (s *EmbeddingService) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := sum % uint64(s.dimensions)
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}
