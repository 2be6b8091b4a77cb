// Package tui provides an interactive terminal user interface for thinkrag.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces required by the TUI.
type Ports struct {
	// Session is the conversation the chat view drives.
	Session driving.ChatSession

	// KnowledgeBase lists, opens and removes ingested documents.
	KnowledgeBase driving.KnowledgeBaseService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Session == nil {
		return ErrMissingSession
	}
	if p.KnowledgeBase == nil {
		return ErrMissingKnowledgeBase
	}
	return nil
}
