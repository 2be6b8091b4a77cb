// Package chunker provides a fixed-size, overlapping text chunking processor.
package chunker

import (
	"context"
	"strconv"

	"github.com/google/uuid"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 1024

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = 128

// chunkNamespace seeds name-based chunk IDs so that identical input yields identical chunks.
var chunkNamespace = uuid.MustParse("8f0d3c1e-5a7b-4c2f-9e61-0b4d2a6c7e93")

// Processor splits document content into fixed-size chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a new chunker processor with the given options.
// Returns domain.ErrInvalidConfig for a size outside 1..4096 or an
// overlap outside 0..size-1.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	cfg := domain.ChunkingConfig{ChunkSize: p.chunkSize, Overlap: p.overlap}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured chunk size.
func (p *Processor) ChunkSize() int {
	return p.chunkSize
}

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int {
	return p.overlap
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	pieces, err := Split(doc.Content, p.chunkSize, p.overlap)
	if err != nil {
		return nil, err
	}
	if len(pieces) == 0 {
		// Empty content produces no chunks
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks = append(chunks, domain.Chunk{
			ID:         ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Content:    piece.Text,
			Position:   i,
			Start:      piece.Start,
			End:        piece.End,
			Overlap:    piece.Overlap,
			Metadata:   make(map[string]any),
		})
	}

	return chunks, nil
}

// ChunkID derives the chunk identifier from its document and position.
func ChunkID(documentID string, position int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(documentID+"#"+strconv.Itoa(position))).String()
}
