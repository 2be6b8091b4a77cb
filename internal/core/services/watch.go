package services

import (
	"context"
	"time"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
)

// Ensure WatchService implements the interface.
var _ driving.WatchService = (*WatchService)(nil)

// DefaultDebounce is how long changes to one file are coalesced.
const DefaultDebounce = 500 * time.Millisecond

// WatchService re-ingests changed files and deletes removed ones.
type WatchService struct {
	ingest   driving.IngestService
	kb       driving.KnowledgeBaseService
	debounce time.Duration
	onEvent  func(driving.WatchEvent)
}

// NewWatchService creates a watch service with DefaultDebounce.
func NewWatchService(ingest driving.IngestService, kb driving.KnowledgeBaseService) *WatchService {
	return &WatchService{ingest: ingest, kb: kb, debounce: DefaultDebounce}
}

// SetDebounce sets the coalescing window. Zero applies every change at once.
func (s *WatchService) SetDebounce(d time.Duration) {
	s.debounce = max(d, 0)
}

// OnEvent sets a callback invoked after each applied change.
func (s *WatchService) OnEvent(fn func(driving.WatchEvent)) {
	s.onEvent = fn
}

// Run applies changes until ctx ends or the change channel closes.
// Changes to the same path within the debounce window collapse to the last.
func (s *WatchService) Run(ctx context.Context, watcher driven.Watcher, cfg domain.ChunkingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	changes, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}
	logger.Info("Watching for changes")

	var (
		pending = make(map[string]domain.RawDocumentChange)
		order   []string
		timer   *time.Timer
		fire    <-chan time.Time
	)
	flush := func() {
		for _, uri := range order {
			s.apply(ctx, pending[uri], cfg)
		}
		clear(pending)
		order = order[:0]
		fire = nil
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fire:
			flush()
		case change, ok := <-changes:
			if !ok {
				flush()
				return nil
			}
			uri := change.Document.URI
			if _, seen := pending[uri]; !seen {
				order = append(order, uri)
			}
			pending[uri] = merge(pending[uri], change)
			if s.debounce == 0 {
				flush()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(s.debounce)
			} else {
				timer.Reset(s.debounce)
			}
			fire = timer.C
		}
	}
}

// merge keeps the latest change but reports a file created in the same
// window as created.
func merge(prev, next domain.RawDocumentChange) domain.RawDocumentChange {
	if prev.Type == domain.ChangeCreated && next.Type == domain.ChangeUpdated && prev.Document.URI != "" {
		next.Type = domain.ChangeCreated
	}
	return next
}

func (s *WatchService) apply(ctx context.Context, change domain.RawDocumentChange, cfg domain.ChunkingConfig) {
	event := driving.WatchEvent{Change: change}
	switch change.Type {
	case domain.ChangeDeleted:
		event.Removed, event.Err = s.kb.DeleteByURI(ctx, change.Document.URI)
		if event.Err == nil {
			logger.Info("Removed %d documents for %s", event.Removed, change.Document.URI)
		}
	default:
		event.Result, event.Err = s.ingest.Replace(ctx, change.Document, cfg)
		if event.Err == nil {
			logger.Info("Re-ingested %s: %d chunks", change.Document.Name, event.Result.Chunks)
		}
	}
	if event.Err != nil {
		logger.Warn("Apply %s %s: %v", change.Type, change.Document.URI, event.Err)
	}
	if s.onEvent != nil {
		s.onEvent(event)
	}
}
