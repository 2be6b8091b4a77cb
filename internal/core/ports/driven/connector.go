package driven

import (
	"context"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// Connector produces raw documents for ingestion.
// Implementations read local directories or fetch web pages.
type Connector interface {
	// Type returns the connector type identifier.
	Type() string

	// Validate checks the connector is ready to produce documents.
	// For filesystem, this checks the path exists and is readable.
	Validate(ctx context.Context) error

	// FullSync emits every document the connector can see.
	// Both channels are closed when the sync finishes.
	FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error)

	// Close releases resources.
	Close() error
}

// Watcher pushes document changes as they happen.
type Watcher interface {
	// Watch listens for changes until ctx is cancelled or Close is called.
	Watch(ctx context.Context) (<-chan domain.RawDocumentChange, error)

	// Close releases resources.
	Close() error
}
