package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the knowledge base"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer    string           `json:"answer"`
	Complete  bool             `json:"complete"`
	Citations []CitationOutput `json:"citations"`
}

// CitationOutput is one source used for an answer.
type CitationOutput struct {
	DocumentID string  `json:"document_id"`
	Source     string  `json:"source"`
	URI        string  `json:"uri,omitempty"`
	Page       string  `json:"page"`
	Score      float64 `json:"score"`
	Snippet    string  `json:"snippet"`
}

// ListSourcesInput is the input schema for the list_sources tool.
type ListSourcesInput struct {
	Page     int `json:"page,omitempty" jsonschema:"page number starting at 1 (default 1)"`
	PageSize int `json:"page_size,omitempty" jsonschema:"sources per page (default 5)"`
}

// ListSourcesOutput is the output schema for the list_sources tool.
type ListSourcesOutput struct {
	Sources    []SourceOutput `json:"sources"`
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Total      int            `json:"total"`
}

// SourceOutput is one ingested source.
type SourceOutput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	URI       string `json:"uri"`
	Documents int    `json:"documents"`
	CreatedAt string `json:"created_at"`
}

// DeleteSourceInput is the input schema for the delete_source tool.
type DeleteSourceInput struct {
	DocumentID string `json:"document_id" jsonschema:"id of any document of the source to remove"`
}

// DeleteSourceOutput is the output schema for the delete_source tool.
type DeleteSourceOutput struct {
	Removed int `json:"removed"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a question from the ingested documents and cite the passages used",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_sources",
		Description: "List the files and web pages in the knowledge base, one page at a time",
	}, s.handleListSources)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_source",
		Description: "Remove a source and all of its documents from the knowledge base",
	}, s.handleDeleteSource)
}

// handleAsk consumes the whole answer before replying.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Query.Query(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{}, fmt.Errorf("answering question: %w", err)
	}
	defer answer.Close()

	for _, err := range answer.Fragments() {
		if err != nil {
			return nil, AskOutput{}, fmt.Errorf("generating answer: %w", err)
		}
	}

	citations := answer.Citations()
	output := AskOutput{
		Answer:    answer.Text(),
		Complete:  answer.Complete(),
		Citations: make([]CitationOutput, len(citations)),
	}
	for i := range citations {
		c := &citations[i]
		output.Citations[i] = CitationOutput{
			DocumentID: c.DocumentID,
			Source:     c.Source,
			URI:        c.URI,
			Page:       c.PageLabel,
			Score:      c.Score,
			Snippet:    c.Snippet,
		}
	}
	return nil, output, nil
}

// handleListSources returns one page of sources.
func (s *Server) handleListSources(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListSourcesInput,
) (*mcp.CallToolResult, ListSourcesOutput, error) {
	page := input.Page
	if page <= 0 {
		page = 1
	}
	size := input.PageSize
	if size <= 0 {
		size = domain.DefaultPageSize
	}

	result, err := s.ports.KnowledgeBase.Page(ctx, page, size)
	if err != nil {
		return nil, ListSourcesOutput{}, fmt.Errorf("listing sources: %w", err)
	}

	output := ListSourcesOutput{
		Sources:    make([]SourceOutput, len(result.Entries)),
		Page:       result.Page,
		TotalPages: result.TotalPages,
		Total:      result.Total,
	}
	for i := range result.Entries {
		output.Sources[i] = sourceOutput(&result.Entries[i])
	}
	return nil, output, nil
}

// handleDeleteSource removes every document sharing the source of input.DocumentID.
func (s *Server) handleDeleteSource(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DeleteSourceInput,
) (*mcp.CallToolResult, DeleteSourceOutput, error) {
	if input.DocumentID == "" {
		return nil, DeleteSourceOutput{}, errors.New("document_id is required")
	}
	n, err := s.ports.KnowledgeBase.DeleteSource(ctx, input.DocumentID)
	if err != nil {
		return nil, DeleteSourceOutput{}, fmt.Errorf("deleting source: %w", err)
	}
	return nil, DeleteSourceOutput{Removed: n}, nil
}

func sourceOutput(e *domain.SourceEntry) SourceOutput {
	return SourceOutput{
		ID:        e.ID,
		Name:      e.Name,
		Type:      e.Type,
		URI:       e.URI,
		Documents: e.Documents,
		CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}
