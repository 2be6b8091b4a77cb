// Package mcp provides an MCP (Model Context Protocol) server adapter for ThinkRAG.
// It lets AI assistants ask questions of the local knowledge base and manage its sources.
package mcp

import "errors"

var (
	// ErrMissingQueryService is returned when the query service is not provided.
	ErrMissingQueryService = errors.New("mcp: query service is required")

	// ErrMissingKnowledgeBase is returned when the knowledge base service is not provided.
	ErrMissingKnowledgeBase = errors.New("mcp: knowledge base service is required")
)
