package mcp

import (
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the MCP server.
type Ports struct {
	// Query answers questions with citations.
	Query driving.QueryService

	// KnowledgeBase lists and removes ingested sources.
	KnowledgeBase driving.KnowledgeBaseService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.KnowledgeBase == nil {
		return ErrMissingKnowledgeBase
	}
	return nil
}
