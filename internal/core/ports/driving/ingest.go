package driving

import (
	"context"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
)

// IngestService turns files into indexed documents.
type IngestService interface {
	// Ingest normalises, chunks, embeds and indexes each file.
	// The chunking config is validated before anything is stored.
	// A failing file never stops its siblings; the report holds
	// one result per file and its Err joins the failures.
	Ingest(ctx context.Context, files []domain.RawDocument, cfg domain.ChunkingConfig) (*domain.IngestReport, error)

	// Replace removes every document with the file's URI and ingests it again.
	Replace(ctx context.Context, file domain.RawDocument, cfg domain.ChunkingConfig) (domain.FileResult, error)
}

// ProgressFunc reports ingestion progress after each file.
type ProgressFunc func(done, total int, result domain.FileResult)

// WatchService keeps the knowledge base in step with a watched directory.
type WatchService interface {
	// Run applies changes from watcher until ctx ends or the watcher stops.
	// Created and modified files are re-ingested, removed files are deleted
	// by source path.
	Run(ctx context.Context, watcher driven.Watcher, cfg domain.ChunkingConfig) error
}

// WatchEvent reports how one change was applied.
type WatchEvent struct {
	// Change is the filesystem change.
	Change domain.RawDocumentChange

	// Result is the ingestion outcome for created or updated files.
	Result domain.FileResult

	// Removed is the number of documents deleted for a removed file.
	Removed int

	// Err is the failure applying the change, if any.
	Err error
}
